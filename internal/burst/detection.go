package burst

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// Detection is an observation annotated with one burst flag and one threshold
// per level.
type Detection struct {
	domain.Observation
	Bursts     domain.Flags
	Thresholds domain.Thresholds
}

// MarshalJSON flattens the observation and emits burst_<level> and
// <level>_threshold columns.
func (d Detection) MarshalJSON() ([]byte, error) {
	row, err := toColumns(d.Observation)
	if err != nil {
		return nil, err
	}
	for _, l := range domain.Levels {
		row[l.BurstColumn()] = d.Bursts[l]
		row[l.ThresholdColumn()] = d.Thresholds[l]
	}
	return json.Marshal(row)
}

func (d *Detection) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &d.Observation); err != nil {
		return err
	}
	var cols map[string]json.RawMessage
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	for _, l := range domain.Levels {
		if raw, ok := cols[l.BurstColumn()]; ok {
			if err := json.Unmarshal(raw, &d.Bursts[l]); err != nil {
				return fmt.Errorf("decode %s: %w", l.BurstColumn(), err)
			}
		}
		d.Thresholds[l] = nil
		if raw, ok := cols[l.ThresholdColumn()]; ok {
			if err := json.Unmarshal(raw, &d.Thresholds[l]); err != nil {
				return fmt.Errorf("decode %s: %w", l.ThresholdColumn(), err)
			}
		}
	}
	return nil
}

// toColumns marshals v and decodes it back into a column map so extra
// columns can be appended.
func toColumns(v any) (map[string]any, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := json.Unmarshal(base, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func annotate(o domain.Observation, thresholds domain.Thresholds) Detection {
	d := Detection{Observation: o}
	for _, l := range domain.Levels {
		t := thresholds[l]
		if t == nil {
			continue
		}
		d.Thresholds[l] = domain.Float(*t)
		d.Bursts[l] = o.LogCount > *t
	}
	return d
}

func sortDetections(dets []Detection) {
	slices.SortStableFunc(dets, func(a, b Detection) int {
		return domain.CompareObservations(a.Observation, b.Observation)
	})
}
