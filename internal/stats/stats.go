// Package stats computes distribution statistics over a numeric sample of
// log-transformed counts.
//
// All functions leave the input slice untouched and return an
// InsufficientDataError for an empty sample. A single-element sample is valid:
// its spread terms (IQR, MAD, standard deviation) are zero.
package stats

import (
	"math"
	"slices"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// NormalMADScale makes the median absolute deviation a consistent estimator
// of the standard deviation for normally distributed data (≈1.4826).
var NormalMADScale = 1 / distuv.UnitNormal.Quantile(0.75)

func checkSample(sample []float64, what string) error {
	if len(sample) == 0 {
		return &domain.InsufficientDataError{What: what}
	}
	return nil
}

// Quantile returns the q-th quantile (0 ≤ q ≤ 1) using linear interpolation
// between the closest ranks, the same rule as numpy's "linear" method.
func Quantile(sample []float64, q float64) (float64, error) {
	if err := checkSample(sample, "quantile"); err != nil {
		return 0, err
	}
	sorted := slices.Clone(sample)
	slices.Sort(sorted)
	return quantileSorted(sorted, q), nil
}

func quantileSorted(sorted []float64, q float64) float64 {
	q = math.Max(0, math.Min(1, q))
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Quartiles returns the 25th and 75th percentiles.
func Quartiles(sample []float64) (q1, q3 float64, err error) {
	if err := checkSample(sample, "quartiles"); err != nil {
		return 0, 0, err
	}
	sorted := slices.Clone(sample)
	slices.Sort(sorted)
	return quantileSorted(sorted, 0.25), quantileSorted(sorted, 0.75), nil
}

// IQR returns the interquartile range Q3 − Q1.
func IQR(sample []float64) (float64, error) {
	q1, q3, err := Quartiles(sample)
	if err != nil {
		return 0, err
	}
	return q3 - q1, nil
}

// Median returns the sample median.
func Median(sample []float64) (float64, error) {
	if err := checkSample(sample, "median"); err != nil {
		return 0, err
	}
	return mstats.Median(sample)
}

// MAD returns the median absolute deviation scaled by NormalMADScale.
func MAD(sample []float64) (float64, error) {
	return ScaledMAD(sample, NormalMADScale)
}

// ScaledMAD returns scale × median(|x − median(x)|).
func ScaledMAD(sample []float64, scale float64) (float64, error) {
	if err := checkSample(sample, "median absolute deviation"); err != nil {
		return 0, err
	}
	raw, err := mstats.MedianAbsoluteDeviation(sample)
	if err != nil {
		return 0, err
	}
	return scale * raw, nil
}

// Mean returns the arithmetic mean.
func Mean(sample []float64) (float64, error) {
	if err := checkSample(sample, "mean"); err != nil {
		return 0, err
	}
	return stat.Mean(sample, nil), nil
}

// StdDev returns the sample standard deviation (N−1 denominator). A single
// value has zero deviation.
func StdDev(sample []float64) (float64, error) {
	if err := checkSample(sample, "standard deviation"); err != nil {
		return 0, err
	}
	if len(sample) < 2 {
		return 0, nil
	}
	return stat.StdDev(sample, nil), nil
}

// Summary holds the descriptive statistics reported for a set of thresholds.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Describe computes count, mean, standard deviation, median, min and max.
func Describe(sample []float64) (Summary, error) {
	if err := checkSample(sample, "describe"); err != nil {
		return Summary{}, err
	}
	mean, _ := Mean(sample)
	sd, _ := StdDev(sample)
	median, err := Median(sample)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		N:      len(sample),
		Mean:   mean,
		StdDev: sd,
		Median: median,
		Min:    floats.Min(sample),
		Max:    floats.Max(sample),
	}, nil
}
