package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
	"github.com/couchcryptid/storm-lightning-bursts/internal/burst"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/observability"
	"github.com/couchcryptid/storm-lightning-bursts/internal/pipeline"
)

// --- mocks ---

type extractResult struct {
	batch []domain.RawEvent
	err   error
}

// mockExtractor replays results in order, then reports a drained source.
type mockExtractor struct {
	results []extractResult
	calls   int
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := m.calls
	m.calls++
	if i >= len(m.results) {
		return nil, nil
	}
	return m.results[i].batch, m.results[i].err
}

type mockAnalyzer struct {
	got []domain.Observation
	err error
}

func (m *mockAnalyzer) Run(_ context.Context, obs []domain.Observation) (*analysis.Report, error) {
	m.got = obs
	if m.err != nil {
		return nil, m.err
	}
	flags := domain.Flags{}
	flags[domain.IQR1] = true
	return &analysis.Report{
		RunID:        "run-1",
		Observations: len(obs),
		Detections:   []burst.Detection{{Observation: obs[0], Bursts: flags}},
		Groups:       []analysis.GroupReport{{Basin: domain.BasinATL, CategoryGroup: domain.CategoryGroupAll}},
	}, nil
}

type mockLoader struct {
	reports []*analysis.Report
	errs    []error
}

func (m *mockLoader) LoadReport(_ context.Context, r *analysis.Report) error {
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	m.reports = append(m.reports, r)
	return nil
}

type commitLog struct {
	mu      sync.Mutex
	commits []string
}

func (c *commitLog) attach(raw domain.RawEvent) domain.RawEvent {
	raw.Commit = func(context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.commits = append(c.commits, fmt.Sprintf("%s/%d/%d", raw.Topic, raw.Partition, raw.Offset))
		return nil
	}
	return raw
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func newPipeline(ext pipeline.BatchExtractor, a pipeline.Analyzer, loaders []pipeline.ReportLoader, m *observability.Metrics, opts pipeline.Options) *pipeline.Pipeline {
	return pipeline.New(ext, pipeline.NewTransformer(), a, loaders, slog.Default(), m, opts)
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{results: []extractResult{
		{batch: []domain.RawEvent{makeRawEvent(t, "ATL_202201", 0, 12), makeRawEvent(t, "ATL_202201", 1, 40)}},
		{batch: []domain.RawEvent{makeRawEvent(t, "ATL_202201", 2, 9)}},
	}}
	an := &mockAnalyzer{}
	l1, l2 := &mockLoader{}, &mockLoader{}
	metrics := newTestMetrics()
	p := newPipeline(ext, an, []pipeline.ReportLoader{l1, l2}, metrics, pipeline.Options{BatchSize: 2})

	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.Report()
	assert.False(t, ok)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	require.Len(t, an.got, 3)
	assert.Equal(t, 40, an.got[1].Count)
	assert.Equal(t, domain.BasinATL, an.got[0].Basin)
	assert.Equal(t, 3, ext.calls)

	require.Len(t, l1.reports, 1)
	require.Len(t, l2.reports, 1)
	assert.Same(t, report, l1.reports[0])

	assert.NoError(t, p.CheckReadiness(context.Background()))
	got, ok := p.Report()
	require.True(t, ok)
	assert.Same(t, report, got)

	assert.InDelta(t, 3, testutil.ToFloat64(metrics.RecordsConsumed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AnalysisRuns.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GroupsAnalyzed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.BurstsDetected.WithLabelValues("iqr1")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.BurstsDetected.WithLabelValues("mad1")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_InvalidRecordFails(t *testing.T) {
	var log commitLog
	bad := log.attach(domain.RawEvent{Topic: "bins", Offset: 7, Value: []byte(`{"storm_code":"ATL_1"}`)})
	ext := &mockExtractor{results: []extractResult{
		{batch: []domain.RawEvent{log.attach(makeRawEvent(t, "ATL_202201", 0, 12)), bad}},
	}}
	an := &mockAnalyzer{}
	p := newPipeline(ext, an, nil, newTestMetrics(), pipeline.Options{BatchSize: 10})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 7")
	var missing *domain.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, domain.ColumnTimeBin, missing.Column)
	assert.Nil(t, an.got)
	assert.Empty(t, log.commits)
}

func TestPipeline_Run_SkipInvalidRecords(t *testing.T) {
	var log commitLog
	records := []domain.RawEvent{
		makeRawEvent(t, "ATL_202201", 0, 12),
		{Value: []byte("not json")},
		makeRawEvent(t, "ATL_202201", 2, 9),
	}
	for i := range records {
		records[i].Topic = "bins"
		records[i].Offset = int64(i + 10)
		records[i] = log.attach(records[i])
	}
	ext := &mockExtractor{results: []extractResult{{batch: records}}}
	an := &mockAnalyzer{}
	metrics := newTestMetrics()
	p := newPipeline(ext, an, nil, metrics, pipeline.Options{BatchSize: 10, SkipInvalid: true})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, an.got, 2)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.IngestErrors), 0)
	assert.Equal(t, []string{"bins/0/12"}, log.commits)
}

func TestPipeline_Run_CommitsLastOffsetPerPartition(t *testing.T) {
	var log commitLog
	mk := func(partition int, offset int64) domain.RawEvent {
		raw := makeRawEvent(t, "EPAC_202210", int(offset), 5)
		raw.Topic = "bins"
		raw.Partition = partition
		raw.Offset = offset
		return log.attach(raw)
	}
	ext := &mockExtractor{results: []extractResult{
		{batch: []domain.RawEvent{mk(0, 1), mk(1, 5), mk(0, 2)}},
		{batch: []domain.RawEvent{mk(1, 6)}},
	}}
	p := newPipeline(ext, &mockAnalyzer{}, []pipeline.ReportLoader{&mockLoader{}}, newTestMetrics(), pipeline.Options{BatchSize: 3})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bins/0/2", "bins/1/6"}, log.commits)
}

func TestPipeline_Run_RetriesExtractError(t *testing.T) {
	ext := &mockExtractor{results: []extractResult{
		{err: errors.New("broker unavailable")},
		{batch: []domain.RawEvent{makeRawEvent(t, "ATL_202201", 0, 12)}},
	}}
	an := &mockAnalyzer{}
	p := newPipeline(ext, an, nil, newTestMetrics(), pipeline.Options{BatchSize: 1})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, an.got, 1)
	assert.Equal(t, 3, ext.calls)
}

func TestPipeline_Run_GivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("broker unavailable")
	ext := &mockExtractor{results: []extractResult{{err: boom}, {err: boom}}}
	an := &mockAnalyzer{}
	p := newPipeline(ext, an, nil, newTestMetrics(), pipeline.Options{BatchSize: 1, MaxRetries: 1})

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ext.calls)
	assert.Nil(t, an.got)
}

func TestPipeline_Run_CorruptSourceStops(t *testing.T) {
	corrupt := fmt.Errorf("read bins.csv line 3: %w", domain.ErrSourceCorrupt)
	ext := &mockExtractor{results: []extractResult{
		{batch: []domain.RawEvent{makeRawEvent(t, "ATL_202201", 0, 12)}, err: corrupt},
	}}
	an := &mockAnalyzer{}
	p := newPipeline(ext, an, nil, newTestMetrics(), pipeline.Options{BatchSize: 5})

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrSourceCorrupt)
	assert.Equal(t, 1, ext.calls)
	assert.Nil(t, an.got)
}

func TestPipeline_Run_AnalyzeError(t *testing.T) {
	var log commitLog
	raw := log.attach(makeRawEvent(t, "ATL_202201", 0, 12))
	ext := &mockExtractor{results: []extractResult{{batch: []domain.RawEvent{raw}}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := newPipeline(ext, &mockAnalyzer{err: errors.New("bad plan")}, []pipeline.ReportLoader{ldr}, metrics, pipeline.Options{BatchSize: 5})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze: bad plan")
	assert.Empty(t, ldr.reports)
	assert.Empty(t, log.commits)
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AnalysisRuns.WithLabelValues("error")), 0)
}

func TestPipeline_Run_LoadRetried(t *testing.T) {
	var log commitLog
	raw := log.attach(makeRawEvent(t, "ATL_202201", 0, 12))
	ext := &mockExtractor{results: []extractResult{{batch: []domain.RawEvent{raw}}}}
	ldr := &mockLoader{errs: []error{errors.New("disk full")}}
	p := newPipeline(ext, &mockAnalyzer{}, []pipeline.ReportLoader{ldr}, newTestMetrics(), pipeline.Options{BatchSize: 5})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, ldr.reports, 1)
	assert.Len(t, log.commits, 1)
}

func TestPipeline_Run_LoadFailsWithoutCommit(t *testing.T) {
	var log commitLog
	raw := log.attach(makeRawEvent(t, "ATL_202201", 0, 12))
	ext := &mockExtractor{results: []extractResult{{batch: []domain.RawEvent{raw}}}}
	boom := errors.New("disk full")
	ldr := &mockLoader{errs: []error{boom, boom}}
	p := newPipeline(ext, &mockAnalyzer{}, []pipeline.ReportLoader{ldr}, newTestMetrics(), pipeline.Options{BatchSize: 5, MaxRetries: 1})

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, log.commits)
	_, ok := p.Report()
	assert.False(t, ok)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{}
	an := &mockAnalyzer{}
	p := newPipeline(ext, an, nil, newTestMetrics(), pipeline.Options{BatchSize: 5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, an.got)
}

func TestObservationTransformer_Transform(t *testing.T) {
	out, err := pipeline.NewTransformer().Transform(context.Background(), makeRawEvent(t, "WPAC_201905", 3, 17))
	require.NoError(t, err)
	assert.Equal(t, "WPAC_201905", out.EntityID)
	assert.Equal(t, domain.BasinWPAC, out.Basin)
	assert.Equal(t, 17, out.Count)
	assert.Equal(t, "2", out.Category)

	_, err = pipeline.NewTransformer().Transform(context.Background(), domain.RawEvent{Value: []byte("{")})
	assert.Error(t, err)
}

// --- helpers ---

func makeRawEvent(t *testing.T, storm string, bin, count int) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.RawTimeBinRecord{
		StormCode:      storm,
		TimeBin:        fmt.Sprintf("2022-09-%02d 00:00", 1+bin%28),
		LightningCount: fmt.Sprint(count),
		Knots:          "65",
		Category:       "2",
		ShearQuad:      "DL",
	})
	require.NoError(t, err)
	return domain.RawEvent{Key: []byte(storm), Value: data}
}
