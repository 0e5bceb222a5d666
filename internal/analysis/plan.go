package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/stats"
	"github.com/couchcryptid/storm-lightning-bursts/internal/threshold"
)

// QualifierEffective tags group thresholds computed from effective storm thresholds.
const QualifierEffective = "effective"

// Plan selects which groups and threshold variants one run produces.
type Plan struct {
	Basins         []domain.Basin         `yaml:"basins" json:"basins"`
	CategoryGroups []domain.CategoryGroup `yaml:"category_groups" json:"category_groups"`
	// StdDevs are the standard-deviation multiples applied to group thresholds.
	StdDevs []float64 `yaml:"std_devs" json:"std_devs"`
	// MinKnots drops bins with a weaker current wind speed before detection.
	MinKnots float64 `yaml:"min_knots" json:"min_knots"`
	// Effective adds a variant computed only from thresholds that fired.
	Effective   bool              `yaml:"effective" json:"effective"`
	ByPartition bool              `yaml:"by_partition" json:"by_partition"`
	Multipliers MethodMultipliers `yaml:"multipliers" json:"multipliers"`
	MADScale    float64           `yaml:"mad_scale" json:"mad_scale"`
}

// MethodMultipliers configures the tier multipliers of each threshold method.
type MethodMultipliers struct {
	IQR       threshold.Multipliers `yaml:"iqr" json:"iqr"`
	MAD       threshold.Multipliers `yaml:"mad" json:"mad"`
	LogNormal threshold.Multipliers `yaml:"logn" json:"logn"`
}

// DefaultPlan covers every basin and category group at 2 SD with the
// standard multipliers.
func DefaultPlan() Plan {
	return Plan{
		Basins:         append([]domain.Basin(nil), domain.Basins...),
		CategoryGroups: append([]domain.CategoryGroup(nil), domain.CategoryGroups...),
		StdDevs:        []float64{2},
		MinKnots:       40,
		Effective:      true,
		Multipliers: MethodMultipliers{
			IQR:       threshold.DefaultIQRMultipliers,
			MAD:       threshold.DefaultMADMultipliers,
			LogNormal: threshold.DefaultLogNormalMultipliers,
		},
		MADScale: stats.NormalMADScale,
	}
}

// Validate checks the plan against the closed basin and category-group sets
// and the numeric constraints of the threshold methods.
func (p Plan) Validate() error {
	if len(p.Basins) == 0 {
		return errors.New("plan: at least one basin is required")
	}
	for _, b := range p.Basins {
		if _, err := domain.ParseBasin(string(b)); err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}
	if len(p.CategoryGroups) == 0 {
		return errors.New("plan: at least one category group is required")
	}
	for _, g := range p.CategoryGroups {
		if _, err := domain.ParseCategoryGroup(string(g)); err != nil {
			return fmt.Errorf("plan: %w", err)
		}
	}
	if len(p.StdDevs) == 0 {
		return errors.New("plan: at least one std-dev multiple is required")
	}
	seen := make(map[float64]bool, len(p.StdDevs))
	for _, k := range p.StdDevs {
		if math.IsNaN(k) || math.IsInf(k, 0) || k < 0 {
			return fmt.Errorf("plan: invalid std-dev multiple %v", k)
		}
		if seen[k] {
			return fmt.Errorf("plan: std-dev multiple %v listed twice", k)
		}
		seen[k] = true
	}
	for _, m := range []struct {
		method domain.Method
		mult   threshold.Multipliers
	}{
		{domain.MethodMAD, p.Multipliers.MAD},
		{domain.MethodIQR, p.Multipliers.IQR},
		{domain.MethodLogNormal, p.Multipliers.LogNormal},
	} {
		if err := m.mult.Validate(); err != nil {
			return fmt.Errorf("plan: %s %w", m.method, err)
		}
	}
	if !(p.MADScale > 0) || math.IsInf(p.MADScale, 0) {
		return fmt.Errorf("plan: mad_scale must be positive, got %v", p.MADScale)
	}
	return nil
}

// ThresholdSet builds the threshold methods configured by the plan.
func (p Plan) ThresholdSet() (threshold.Set, error) {
	return threshold.NewSet(
		threshold.MAD{Multipliers: p.Multipliers.MAD, Scale: p.MADScale},
		threshold.IQR{Multipliers: p.Multipliers.IQR},
		threshold.LogNormal{Multipliers: p.Multipliers.LogNormal},
	)
}
