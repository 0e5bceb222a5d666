package burst

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/stats"
)

// GroupSummary is the reporting table for one basin and category group: one
// row per level, widened by every merged threshold variant.
type GroupSummary struct {
	Basin         domain.Basin                      `json:"basin"`
	CategoryGroup domain.CategoryGroup              `json:"category_group"`
	Rows          [domain.NumLevels]GroupSummaryRow `json:"rows"`
}

// GroupSummaryRow is one level of a group summary.
type GroupSummaryRow struct {
	Level domain.Level `json:"-"`
	// Stats describes the storms' own thresholds; nil when none are present.
	Stats *stats.Summary `json:"stats"`
	// Own counts bursts flagged by each storm's own threshold.
	Own      BurstCount       `json:"own"`
	Variants []VariantColumns `json:"variants,omitempty"`
}

// VariantColumns are the columns added by one group threshold variant.
type VariantColumns struct {
	Qualifier       domain.Label `json:"qualifier"`
	StdDevs         float64      `json:"std_dev"`
	MeanThreshold   *float64     `json:"mean_threshold"`
	MedianThreshold *float64     `json:"median_threshold"`
	MeanBursts      BurstCount   `json:"mean_bursts"`
	MedianBursts    BurstCount   `json:"median_bursts"`
}

// VariantKey identifies a variant within a group summary.
type VariantKey struct {
	Qualifier string
	StdDevs   float64
}

// Key returns the variant's identity.
func (v VariantColumns) Key() VariantKey {
	return VariantKey{Qualifier: v.Qualifier.String(), StdDevs: v.StdDevs}
}

// NewGroupSummary joins the descriptive statistics of the storm thresholds
// with the burst counts of the per-storm detections for one group.
func NewGroupSummary(basin, categoryGroup string, summaries []EntitySummary, dets []Detection) (GroupSummary, error) {
	b, err := domain.ParseBasin(basin)
	if err != nil {
		return GroupSummary{}, err
	}
	g, err := domain.ParseCategoryGroup(categoryGroup)
	if err != nil {
		return GroupSummary{}, err
	}

	described, err := DescribeThresholds(summaries)
	if err != nil {
		return GroupSummary{}, err
	}
	counts := CountBursts(dets)

	gs := GroupSummary{Basin: b, CategoryGroup: g}
	for _, l := range domain.Levels {
		gs.Rows[l] = GroupSummaryRow{Level: l, Stats: described[l], Own: counts[l]}
	}
	return gs, nil
}

// MergeVariant returns a copy of gs widened with a group threshold variant:
// the thresholds themselves plus the bursts counted when the mean-based and
// the median-based thresholds were applied to the group's observations.
// Merging the same (qualifier, std-dev) variant twice fails with
// ErrDuplicateVariant.
func MergeVariant(gs GroupSummary, gt GroupThresholds, meanDets, medianDets []Detection) (GroupSummary, error) {
	if gt.Basin != gs.Basin || gt.CategoryGroup != gs.CategoryGroup {
		return GroupSummary{}, fmt.Errorf("merge variant: thresholds for %s/%s do not match summary %s/%s",
			gt.Basin, gt.CategoryGroup, gs.Basin, gs.CategoryGroup)
	}

	key := VariantKey{Qualifier: gt.Qualifier.String(), StdDevs: gt.StdDevs}
	for _, v := range gs.Rows[0].Variants {
		if v.Key() == key {
			return GroupSummary{}, fmt.Errorf("merge variant %q %g SD: %w", key.Qualifier, key.StdDevs, domain.ErrDuplicateVariant)
		}
	}

	meanCounts := CountBursts(meanDets)
	medianCounts := CountBursts(medianDets)

	out := gs
	for _, l := range domain.Levels {
		row := out.Rows[l]
		row.Variants = append(slices.Clone(row.Variants), VariantColumns{
			Qualifier:       gt.Qualifier,
			StdDevs:         gt.StdDevs,
			MeanThreshold:   gt.Mean[l],
			MedianThreshold: gt.Median[l],
			MeanBursts:      meanCounts[l],
			MedianBursts:    medianCounts[l],
		})
		out.Rows[l] = row
	}
	return out, nil
}
