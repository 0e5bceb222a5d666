// Package threshold implements the burst threshold methods. Each method turns
// a sample of log counts into a moderate (tier 1) and a strict (tier 2)
// threshold; an observation is a burst when its log count is strictly greater
// than the threshold.
package threshold

import (
	"errors"
	"fmt"
	"slices"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/stats"
)

// Pair holds the two tier thresholds produced by one method.
type Pair struct {
	Tier1 float64
	Tier2 float64
}

// Tier returns the threshold for tier t.
func (p Pair) Tier(t domain.Tier) float64 {
	if t == domain.Tier2 {
		return p.Tier2
	}
	return p.Tier1
}

// Method computes a threshold pair from a sample.
type Method interface {
	Method() domain.Method
	Thresholds(sample []float64) (Pair, error)
}

// Multipliers scale a method's spread term for each tier.
type Multipliers struct {
	Tier1 float64 `yaml:"tier1" json:"tier1"`
	Tier2 float64 `yaml:"tier2" json:"tier2"`
}

// Validate requires non-negative multipliers with Tier1 ≤ Tier2, which
// guarantees tier1 ≤ tier2 thresholds for every sample.
func (m Multipliers) Validate() error {
	if m.Tier1 < 0 || m.Tier2 < 0 {
		return errors.New("multipliers must be non-negative")
	}
	if m.Tier1 > m.Tier2 {
		return fmt.Errorf("tier 1 multiplier %g exceeds tier 2 multiplier %g", m.Tier1, m.Tier2)
	}
	return nil
}

// Default multipliers.
var (
	DefaultIQRMultipliers       = Multipliers{Tier1: 1.0, Tier2: 1.5}
	DefaultMADMultipliers       = Multipliers{Tier1: 4, Tier2: 5}
	DefaultLogNormalMultipliers = Multipliers{Tier1: 2, Tier2: 3}
)

// IQR thresholds are Q3 + k×IQR.
type IQR struct {
	Multipliers
}

func (IQR) Method() domain.Method { return domain.MethodIQR }

func (m IQR) Thresholds(sample []float64) (Pair, error) {
	q1, q3, err := stats.Quartiles(sample)
	if err != nil {
		return Pair{}, fmt.Errorf("iqr thresholds: %w", err)
	}
	iqr := q3 - q1
	return Pair{Tier1: q3 + m.Tier1*iqr, Tier2: q3 + m.Tier2*iqr}, nil
}

// MAD thresholds are median + k×MAD, where MAD is scaled by Scale.
type MAD struct {
	Multipliers
	Scale float64
}

func (MAD) Method() domain.Method { return domain.MethodMAD }

func (m MAD) Thresholds(sample []float64) (Pair, error) {
	median, err := stats.Median(sample)
	if err != nil {
		return Pair{}, fmt.Errorf("mad thresholds: %w", err)
	}
	mad, err := stats.ScaledMAD(sample, m.Scale)
	if err != nil {
		return Pair{}, fmt.Errorf("mad thresholds: %w", err)
	}
	return Pair{Tier1: median + m.Tier1*mad, Tier2: median + m.Tier2*mad}, nil
}

// LogNormal thresholds are mean + kσ of the log counts.
type LogNormal struct {
	Multipliers
}

func (LogNormal) Method() domain.Method { return domain.MethodLogNormal }

func (m LogNormal) Thresholds(sample []float64) (Pair, error) {
	mean, err := stats.Mean(sample)
	if err != nil {
		return Pair{}, fmt.Errorf("lognormal thresholds: %w", err)
	}
	sd, err := stats.StdDev(sample)
	if err != nil {
		return Pair{}, fmt.Errorf("lognormal thresholds: %w", err)
	}
	return Pair{Tier1: mean + m.Tier1*sd, Tier2: mean + m.Tier2*sd}, nil
}

// Set is one method per domain.Method.
type Set struct {
	methods [len(domain.Methods)]Method
}

// NewSet builds a Set. Every method must appear exactly once.
func NewSet(methods ...Method) (Set, error) {
	var s Set
	for _, m := range methods {
		if m == nil {
			return Set{}, errors.New("nil threshold method")
		}
		idx := int(m.Method())
		if idx < 0 || idx >= len(s.methods) {
			return Set{}, fmt.Errorf("unknown threshold method %v", m.Method())
		}
		if s.methods[idx] != nil {
			return Set{}, fmt.Errorf("duplicate threshold method %v", m.Method())
		}
		s.methods[idx] = m
	}
	for _, dm := range domain.Methods {
		if s.methods[dm] == nil {
			return Set{}, fmt.Errorf("missing threshold method %v", dm)
		}
	}
	return s, nil
}

// DefaultSet returns the IQR, MAD and log-normal methods with the default
// multipliers and the normal-consistent MAD scale.
func DefaultSet() Set {
	s, _ := NewSet(
		MAD{Multipliers: DefaultMADMultipliers, Scale: stats.NormalMADScale},
		IQR{Multipliers: DefaultIQRMultipliers},
		LogNormal{Multipliers: DefaultLogNormalMultipliers},
	)
	return s
}

// Compute runs every method against its own copy of sample and returns one
// threshold per level.
func (s Set) Compute(sample []float64) ([domain.NumLevels]float64, error) {
	var out [domain.NumLevels]float64
	for _, dm := range domain.Methods {
		m := s.methods[dm]
		if m == nil {
			return out, fmt.Errorf("threshold set has no %v method", dm)
		}
		pair, err := m.Thresholds(slices.Clone(sample))
		if err != nil {
			return out, err
		}
		out[domain.LevelOf(dm, domain.Tier1)] = pair.Tier1
		out[domain.LevelOf(dm, domain.Tier2)] = pair.Tier2
	}
	return out, nil
}
