package burst

import (
	"fmt"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/threshold"
)

// DetectOptions controls per-entity detection.
type DetectOptions struct {
	// ByPartition computes thresholds per (storm, sub-partition) instead of per storm.
	ByPartition bool
}

// DetectEntities compares every storm to itself: each threshold method runs
// on the log counts of that storm's rows and flags the rows above it.
//
// All rows passed in contribute to the storm's sample, so zero-count and
// low-intensity bins must be filtered out by the caller. The result is sorted
// by storm, then time.
func DetectEntities(obs []domain.Observation, methods threshold.Set, opts DetectOptions) ([]Detection, error) {
	if err := requireEntityIDs(obs); err != nil {
		return nil, err
	}

	keys, groups := partitionRows(obs, observationKey(opts.ByPartition))
	out := make([]Detection, 0, len(obs))
	for _, k := range keys {
		rows := groups[k]
		sample := make([]float64, len(rows))
		for i, o := range rows {
			sample[i] = o.LogCount
		}

		levels, err := methods.Compute(sample)
		if err != nil {
			return nil, fmt.Errorf("detect bursts for %s: %w", k.entity, err)
		}
		var thresholds domain.Thresholds
		for _, l := range domain.Levels {
			thresholds[l] = domain.Float(levels[l])
		}

		for _, o := range rows {
			out = append(out, annotate(o, thresholds))
		}
	}

	sortDetections(out)
	return out, nil
}

// ApplyGroupThresholds flags every non-zero observation against one fixed
// threshold per level shared by all storms in the group. Zero-count rows are
// dropped first. A nil threshold never flags a burst and stays nil in the
// output. The result is sorted by storm, then time.
func ApplyGroupThresholds(obs []domain.Observation, thresholds domain.Thresholds) ([]Detection, error) {
	if err := requireEntityIDs(obs); err != nil {
		return nil, err
	}

	keys, groups := partitionRows(domain.Filter(obs, domain.NonZero), observationKey(false))
	out := make([]Detection, 0, len(obs))
	for _, k := range keys {
		for _, o := range groups[k] {
			out = append(out, annotate(o, thresholds))
		}
	}

	sortDetections(out)
	return out, nil
}

func requireEntityIDs(obs []domain.Observation) error {
	for _, o := range obs {
		if o.EntityID == "" {
			return &domain.MissingColumnError{Column: domain.ColumnStormCode}
		}
	}
	return nil
}
