package burst

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/stats"
)

// DefaultStdDevs is the default standard-deviation multiple for group thresholds.
const DefaultStdDevs = 2.0

// GroupThresholds holds one shared threshold per level for a basin and
// category group, built on the mean and on the median of the storms'
// own thresholds.
type GroupThresholds struct {
	Basin         domain.Basin         `json:"basin"`
	CategoryGroup domain.CategoryGroup `json:"category_group"`
	StdDevs       float64              `json:"std_dev"`
	Qualifier     domain.Label         `json:"qualifier"`
	Mean          domain.Thresholds    `json:"mean_based"`
	Median        domain.Thresholds    `json:"median_based"`
}

// Thresholds returns the thresholds for basis b.
func (g GroupThresholds) Thresholds(b Basis) domain.Thresholds {
	if b == BasisMedian {
		return g.Median
	}
	return g.Mean
}

// CalculateGroupThresholds derives group thresholds from the storm summaries
// of one basin/category group. For each level:
//
//	mean-based   = mean(thresholds)   + k × sd(thresholds)
//	median-based = median(thresholds) + k × sd(thresholds)
//
// Both variants use the same sample standard deviation. Nil storm thresholds
// are skipped; a level with no values yields nil thresholds. The basin and
// category group are validated before anything is computed.
func CalculateGroupThresholds(basin, categoryGroup string, summaries []EntitySummary, k float64, qualifier domain.Label) (GroupThresholds, error) {
	b, err := domain.ParseBasin(basin)
	if err != nil {
		return GroupThresholds{}, err
	}
	g, err := domain.ParseCategoryGroup(categoryGroup)
	if err != nil {
		return GroupThresholds{}, err
	}
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return GroupThresholds{}, fmt.Errorf("group thresholds: std-dev multiple must be finite, got %v", k)
	}

	out := GroupThresholds{Basin: b, CategoryGroup: g, StdDevs: k, Qualifier: qualifier}
	for _, l := range domain.Levels {
		sample := thresholdSample(summaries, l)
		if len(sample) == 0 {
			continue
		}
		desc, err := stats.Describe(sample)
		if err != nil {
			return GroupThresholds{}, fmt.Errorf("group thresholds %s: %w", l.Key(), err)
		}
		out.Mean[l] = domain.Float(desc.Mean + k*desc.StdDev)
		out.Median[l] = domain.Float(desc.Median + k*desc.StdDev)
	}
	return out, nil
}

// DescribeThresholds returns descriptive statistics of the storm thresholds
// per level; levels without any value are nil.
func DescribeThresholds(summaries []EntitySummary) ([domain.NumLevels]*stats.Summary, error) {
	var out [domain.NumLevels]*stats.Summary
	for _, l := range domain.Levels {
		sample := thresholdSample(summaries, l)
		if len(sample) == 0 {
			continue
		}
		desc, err := stats.Describe(sample)
		if err != nil {
			return out, fmt.Errorf("describe %s: %w", l.Key(), err)
		}
		out[l] = &desc
	}
	return out, nil
}

func thresholdSample(summaries []EntitySummary, l domain.Level) []float64 {
	sample := make([]float64, 0, len(summaries))
	for _, s := range summaries {
		if t := s.Thresholds[l]; t != nil && !math.IsNaN(*t) {
			sample = append(sample, *t)
		}
	}
	return sample
}
