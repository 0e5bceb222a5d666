package burst_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-lightning-bursts/internal/burst"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/threshold"
)

func TestSummarizeEntities(t *testing.T) {
	in := append(series("ATL_202201", 1.0, 1.0, 1.0, 1.0, 10.0), series("ATL_202202", 2, 2, 2)...)
	dets, err := burst.DetectEntities(in, threshold.DefaultSet(), burst.DetectOptions{})
	require.NoError(t, err)

	got := burst.SummarizeEntities(dets, burst.SummaryOptions{})
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "ATL_202201", first.EntityID)
	assert.Equal(t, 5, first.TotalBins)
	assert.Equal(t, 1, first.Bursts[domain.IQR1])
	assert.Equal(t, 1, first.Bursts[domain.MAD2])
	assert.Equal(t, 0, first.Bursts[domain.LogN1])
	assert.Equal(t, 20.0, first.Percent[domain.IQR1])
	assert.Equal(t, 0.0, first.Percent[domain.LogN1])
	assert.Equal(t, 1.0, *first.Thresholds[domain.IQR1])

	second := got[1]
	assert.Equal(t, "ATL_202202", second.EntityID)
	assert.Equal(t, 3, second.TotalBins)
	assert.Equal(t, 2.0, *second.Thresholds[domain.LogN2])
}

func TestSummarizeEntities_Invariants(t *testing.T) {
	in := append(series("EPAC_202201", 0.7, 4.1, 1.3, 1.3, 6.2, 0.7, 2.1), series("EPAC_202202", 3.3, 0.7, 5.5)...)
	dets, err := burst.DetectEntities(in, threshold.DefaultSet(), burst.DetectOptions{})
	require.NoError(t, err)

	for _, s := range burst.SummarizeEntities(dets, burst.SummaryOptions{}) {
		require.Positive(t, s.TotalBins)
		for _, l := range domain.Levels {
			assert.LessOrEqual(t, s.Bursts[l], s.TotalBins)
			assert.GreaterOrEqual(t, s.Percent[l], 0.0)
			assert.LessOrEqual(t, s.Percent[l], 100.0)
		}
	}
}

func TestSummarizeEntities_MaxSkipsNil(t *testing.T) {
	dets := []burst.Detection{
		{Observation: obs("IO_202201", 0, 3, 1.4)},
		{Observation: obs("IO_202201", 1, 3, 1.4)},
	}
	dets[0].Thresholds[domain.MAD1] = ptr(1.2)
	dets[0].Bursts[domain.MAD1] = true

	got := burst.SummarizeEntities(dets, burst.SummaryOptions{})
	require.Len(t, got, 1)
	assert.Equal(t, 1.2, *got[0].Thresholds[domain.MAD1])
	assert.Nil(t, got[0].Thresholds[domain.MAD2])
	assert.Equal(t, 50.0, got[0].Percent[domain.MAD1])
}

func TestSummarizeEntities_ByPartition(t *testing.T) {
	in := series("WPAC_202201", 1, 2, 3, 4)
	for i, q := range []string{"DL", "UR", "DL", "UR"} {
		in[i].Partition = domain.NewLabel(q)
	}
	dets, err := burst.DetectEntities(in, threshold.DefaultSet(), burst.DetectOptions{ByPartition: true})
	require.NoError(t, err)

	got := burst.SummarizeEntities(dets, burst.SummaryOptions{ByPartition: true})
	require.Len(t, got, 2)
	assert.Equal(t, "DL", got[0].Partition.String())
	assert.Equal(t, "UR", got[1].Partition.String())
	assert.Equal(t, 2, got[0].TotalBins)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 33.33, burst.Percentage(1, 3))
	assert.Equal(t, 66.67, burst.Percentage(2, 3))
	assert.Equal(t, 100.0, burst.Percentage(7, 7))
	assert.Equal(t, 0.0, burst.Percentage(0, 0))
}

func TestCountBursts(t *testing.T) {
	dets, err := burst.DetectEntities(series("SHEM_202201", 1.0, 1.0, 1.0, 1.0, 10.0), threshold.DefaultSet(), burst.DetectOptions{})
	require.NoError(t, err)

	counts := burst.CountBursts(dets)
	assert.Equal(t, burst.BurstCount{Level: domain.IQR1, Bursts: 1, Bins: 5, Percent: 20}, counts[domain.IQR1])
	assert.Equal(t, burst.BurstCount{Level: domain.LogN2, Bursts: 0, Bins: 5, Percent: 0}, counts[domain.LogN2])
}

func TestEntitySummary_JSONColumns(t *testing.T) {
	s := burst.EntitySummary{EntityID: "ATL_202201", TotalBins: 4}
	s.Bursts[domain.IQR1] = 1
	s.Thresholds[domain.IQR1] = ptr(2.5)
	s.Percent[domain.IQR1] = 25

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var cols map[string]any
	require.NoError(t, json.Unmarshal(data, &cols))
	assert.Equal(t, "ATL_202201", cols["storm_code"])
	assert.Equal(t, 1.0, cols["iqr1_bursts"])
	assert.Equal(t, 2.5, cols["iqr1_threshold"])
	assert.Equal(t, 25.0, cols["iqr1_prop"])
	assert.Nil(t, cols["mad1_threshold"])
	assert.NotContains(t, cols, "shear_quad")

	var back burst.EntitySummary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestCombineEntitySummaries(t *testing.T) {
	mean := []burst.EntitySummary{{EntityID: "ATL_202201", TotalBins: 3}}
	median := []burst.EntitySummary{{EntityID: "ATL_202201", TotalBins: 3}, {EntityID: "ATL_202202", TotalBins: 1}}

	got := burst.CombineEntitySummaries(mean, median, 2, domain.CategoryGroupStrong)
	require.Len(t, got, 3)
	assert.Equal(t, burst.BasisMean, got[0].Basis)
	assert.Equal(t, burst.BasisMedian, got[1].Basis)
	assert.Equal(t, domain.CategoryGroupStrong, got[2].CategoryGroup)

	data, err := json.Marshal(got[2])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"threshold_calc_type":"median"`)
	assert.Contains(t, string(data), `"std_dev":2`)

	var back burst.TaggedEntitySummary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, got[2], back)
}
