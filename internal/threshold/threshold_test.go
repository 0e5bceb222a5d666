package threshold

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

var outlierSample = []float64{1.0, 1.0, 1.0, 1.0, 10.0}

func TestIQR_Thresholds(t *testing.T) {
	pair, err := IQR{Multipliers: DefaultIQRMultipliers}.Thresholds([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	// Q1 = 1.75, Q3 = 3.25, IQR = 1.5
	assert.InDelta(t, 4.75, pair.Tier1, 1e-12)
	assert.InDelta(t, 5.5, pair.Tier2, 1e-12)
}

func TestMAD_Thresholds(t *testing.T) {
	pair, err := MAD{Multipliers: DefaultMADMultipliers, Scale: 1}.Thresholds([]float64{1, 2, 3, 4, 100})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, pair.Tier1, 1e-12)
	assert.InDelta(t, 8.0, pair.Tier2, 1e-12)
}

func TestLogNormal_Thresholds(t *testing.T) {
	pair, err := LogNormal{Multipliers: DefaultLogNormalMultipliers}.Thresholds(outlierSample)
	require.NoError(t, err)
	sd := math.Sqrt(16.2)
	assert.InDelta(t, 2.8+2*sd, pair.Tier1, 1e-12)
	assert.InDelta(t, 2.8+3*sd, pair.Tier2, 1e-12)
}

func TestDefaultSet_OutlierExample(t *testing.T) {
	got, err := DefaultSet().Compute(outlierSample)
	require.NoError(t, err)

	// IQR and MAD collapse to the central value.
	assert.Equal(t, 1.0, got[domain.IQR1])
	assert.Equal(t, 1.0, got[domain.IQR2])
	assert.Equal(t, 1.0, got[domain.MAD1])
	assert.Equal(t, 1.0, got[domain.MAD2])

	// Log-normal tier 1 sits above the outlier.
	assert.Greater(t, got[domain.LogN1], 10.0)
	assert.Greater(t, got[domain.LogN2], got[domain.LogN1])
}

func TestDefaultSet_TierOrdering(t *testing.T) {
	samples := [][]float64{
		{0.69},
		{1, 1, 1},
		{0.69, 1.1, 2.3, 4.6, 0.69, 3.4},
		{5, 4, 3, 2, 1, 0.5, 9, 12},
	}
	for _, s := range samples {
		got, err := DefaultSet().Compute(s)
		require.NoError(t, err)
		for _, m := range domain.Methods {
			t1 := got[domain.LevelOf(m, domain.Tier1)]
			t2 := got[domain.LevelOf(m, domain.Tier2)]
			assert.LessOrEqual(t, t1, t2, "method %v sample %v", m, s)
		}
	}
}

func TestDefaultSet_SingleValueDegenerates(t *testing.T) {
	got, err := DefaultSet().Compute([]float64{3.3})
	require.NoError(t, err)
	for _, l := range domain.Levels {
		assert.Equal(t, 3.3, got[l], l.Key())
	}
}

func TestCompute_EmptySample(t *testing.T) {
	_, err := DefaultSet().Compute(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientData))
}

func TestNewSet_Validation(t *testing.T) {
	_, err := NewSet(IQR{}, MAD{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	_, err = NewSet(IQR{}, IQR{}, MAD{}, LogNormal{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = NewSet(IQR{}, MAD{}, LogNormal{})
	require.NoError(t, err)
}

// mutatingMethod scribbles over its input to prove other methods are unaffected.
type mutatingMethod struct{ IQR }

func (m mutatingMethod) Thresholds(sample []float64) (Pair, error) {
	for i := range sample {
		sample[i] = 1000
	}
	return m.IQR.Thresholds(sample)
}

func TestCompute_MethodsSeeSameSample(t *testing.T) {
	set, err := NewSet(
		mutatingMethod{IQR{Multipliers: DefaultIQRMultipliers}},
		MAD{Multipliers: DefaultMADMultipliers, Scale: 1},
		LogNormal{Multipliers: DefaultLogNormalMultipliers},
	)
	require.NoError(t, err)

	sample := []float64{1, 2, 3}
	got, err := set.Compute(sample)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, sample)
	assert.InDelta(t, 2.0+4.0, got[domain.MAD1], 1e-12)
	assert.InDelta(t, 2.0+2.0, got[domain.LogN1], 1e-12)
}

func TestMultipliers_Validate(t *testing.T) {
	assert.NoError(t, DefaultIQRMultipliers.Validate())
	assert.Error(t, Multipliers{Tier1: 2, Tier2: 1}.Validate())
	assert.Error(t, Multipliers{Tier1: -1, Tier2: 1}.Validate())
}
