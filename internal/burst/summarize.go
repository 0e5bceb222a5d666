package burst

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// SummaryOptions controls entity summarization.
type SummaryOptions struct {
	// ByPartition summarizes per (storm, sub-partition) instead of per storm.
	ByPartition bool
}

// EntitySummary aggregates one storm's detections.
type EntitySummary struct {
	EntityID  string
	Partition domain.Label
	Bursts    [domain.NumLevels]int
	// Thresholds holds the largest non-nil threshold per level; rows of one
	// storm share a threshold under per-entity detection.
	Thresholds domain.Thresholds
	TotalBins  int
	Percent    [domain.NumLevels]float64
}

// SummarizeEntities sums the burst flags, takes the max threshold, counts the
// bins and derives burst percentages per storm. The result is sorted by storm
// (and sub-partition).
func SummarizeEntities(dets []Detection, opts SummaryOptions) []EntitySummary {
	keys, groups := partitionRows(dets, func(d Detection) entityKey {
		return observationKey(opts.ByPartition)(d.Observation)
	})

	out := make([]EntitySummary, 0, len(keys))
	for _, k := range keys {
		rows := groups[k]
		s := EntitySummary{EntityID: k.entity, Partition: k.partition, TotalBins: len(rows)}
		for _, d := range rows {
			for _, l := range domain.Levels {
				if d.Bursts[l] {
					s.Bursts[l]++
				}
				if t := d.Thresholds[l]; t != nil && (s.Thresholds[l] == nil || *t > *s.Thresholds[l]) {
					s.Thresholds[l] = domain.Float(*t)
				}
			}
		}
		for _, l := range domain.Levels {
			s.Percent[l] = Percentage(s.Bursts[l], s.TotalBins)
		}
		out = append(out, s)
	}
	return out
}

// Percentage returns 100×bursts/bins rounded to two decimals, or 0 when there
// are no bins.
func Percentage(bursts, bins int) float64 {
	if bins == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(bursts)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(bins))).
		Round(2).
		InexactFloat64()
}

func (s EntitySummary) columns() map[string]any {
	row := map[string]any{
		"storm_code": s.EntityID,
		"total_bins": s.TotalBins,
	}
	if p, ok := s.Partition.Get(); ok {
		row["shear_quad"] = p
	}
	for _, l := range domain.Levels {
		row[l.Key()+"_bursts"] = s.Bursts[l]
		row[l.ThresholdColumn()] = s.Thresholds[l]
		row[l.Key()+"_prop"] = s.Percent[l]
	}
	return row
}

// MarshalJSON emits <level>_bursts, <level>_threshold and <level>_prop columns.
func (s EntitySummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.columns())
}

func (s *EntitySummary) UnmarshalJSON(data []byte) error {
	var cols map[string]json.RawMessage
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	*s = EntitySummary{}
	fields := map[string]any{
		"storm_code": &s.EntityID,
		"shear_quad": &s.Partition,
		"total_bins": &s.TotalBins,
	}
	for _, l := range domain.Levels {
		fields[l.Key()+"_bursts"] = &s.Bursts[l]
		fields[l.ThresholdColumn()] = &s.Thresholds[l]
		fields[l.Key()+"_prop"] = &s.Percent[l]
	}
	for name, dst := range fields {
		raw, ok := cols[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return nil
}

// BurstCount is the burst tally for one level over a detection table.
type BurstCount struct {
	Level   domain.Level `json:"-"`
	Bursts  int          `json:"burst_count"`
	Bins    int          `json:"timebin_count"`
	Percent float64      `json:"burst_percentage"`
}

// CountBursts tallies bursts per level across all rows of a detection table.
func CountBursts(dets []Detection) [domain.NumLevels]BurstCount {
	var out [domain.NumLevels]BurstCount
	for _, l := range domain.Levels {
		out[l] = BurstCount{Level: l, Bins: len(dets)}
	}
	for _, d := range dets {
		for _, l := range domain.Levels {
			if d.Bursts[l] {
				out[l].Bursts++
			}
		}
	}
	for _, l := range domain.Levels {
		out[l].Percent = Percentage(out[l].Bursts, out[l].Bins)
	}
	return out
}

// Basis selects the central value a group threshold is built on.
type Basis int

const (
	BasisMean Basis = iota
	BasisMedian
)

func (b Basis) String() string {
	if b == BasisMedian {
		return "median"
	}
	return "mean"
}

// TaggedEntitySummary is an entity summary labelled with the group threshold
// variant that produced it.
type TaggedEntitySummary struct {
	EntitySummary
	StdDevs       float64
	Basis         Basis
	CategoryGroup domain.CategoryGroup
}

func (t TaggedEntitySummary) MarshalJSON() ([]byte, error) {
	row := t.EntitySummary.columns()
	row["std_dev"] = t.StdDevs
	row["threshold_calc_type"] = t.Basis.String()
	row["category_group"] = t.CategoryGroup
	return json.Marshal(row)
}

// CombineEntitySummaries stacks the summaries produced under the mean-based
// and the median-based group thresholds into one tagged table.
func CombineEntitySummaries(mean, median []EntitySummary, k float64, group domain.CategoryGroup) []TaggedEntitySummary {
	out := make([]TaggedEntitySummary, 0, len(mean)+len(median))
	for _, s := range mean {
		out = append(out, TaggedEntitySummary{EntitySummary: s, StdDevs: k, Basis: BasisMean, CategoryGroup: group})
	}
	for _, s := range median {
		out = append(out, TaggedEntitySummary{EntitySummary: s, StdDevs: k, Basis: BasisMedian, CategoryGroup: group})
	}
	return out
}

func (t *TaggedEntitySummary) UnmarshalJSON(data []byte) error {
	if err := t.EntitySummary.UnmarshalJSON(data); err != nil {
		return err
	}
	var tags struct {
		StdDevs       float64              `json:"std_dev"`
		Basis         string               `json:"threshold_calc_type"`
		CategoryGroup domain.CategoryGroup `json:"category_group"`
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	t.StdDevs = tags.StdDevs
	t.CategoryGroup = tags.CategoryGroup
	t.Basis = BasisMean
	if tags.Basis == BasisMedian.String() {
		t.Basis = BasisMedian
	}
	return nil
}
