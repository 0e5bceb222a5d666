// Package pipeline drains an input source into observations, runs the burst
// analysis over them and hands the report to every configured loader.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/observability"
)

const (
	initialBackoff    = 200 * time.Millisecond
	maxBackoff        = 5 * time.Second
	defaultMaxRetries = 5
)

// BatchExtractor reads up to batchSize raw records from the source. An empty
// batch with a nil error means the source is drained.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw record into an observation.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Observation, error)
}

// Analyzer runs the burst analysis over a full dataset.
type Analyzer interface {
	Run(ctx context.Context, obs []domain.Observation) (*analysis.Report, error)
}

// ReportLoader writes a finished report to a destination.
type ReportLoader interface {
	LoadReport(ctx context.Context, report *analysis.Report) error
}

// Options tunes extraction and error handling.
type Options struct {
	BatchSize int
	// SkipInvalid drops records that fail to parse instead of failing the run.
	SkipInvalid bool
	// MaxRetries bounds consecutive retries of a failed extract or load.
	// Zero means the default of 5.
	MaxRetries int
}

// Pipeline orchestrates the extract-analyze-load run.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	analyzer    Analyzer
	loaders     []ReportLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options

	ready  atomic.Bool
	report atomic.Pointer[analysis.Report]
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, a Analyzer, loaders []ReportLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		analyzer:    a,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
	}
}

// CheckReadiness returns nil once a report has been produced.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no analysis report produced yet")
	}
	return nil
}

// Report returns the most recent report, if any.
func (p *Pipeline) Report() (*analysis.Report, bool) {
	r := p.report.Load()
	return r, r != nil
}

// Run drains the source, analyzes every parsed observation, loads the report
// and finally commits the consumed offsets. Offsets are never committed for a
// run that failed.
func (p *Pipeline) Run(ctx context.Context) (*analysis.Report, error) {
	p.logger.Info("pipeline started", "batch_size", p.opts.BatchSize, "loaders", len(p.loaders))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	obs, offsets, err := p.extract(ctx)
	if err != nil {
		return nil, err
	}

	report, err := p.analyze(ctx, obs)
	if err != nil {
		return nil, err
	}

	for _, l := range p.loaders {
		if err := p.withRetry(ctx, "load report", func() error { return l.LoadReport(ctx, report) }); err != nil {
			return nil, err
		}
	}

	p.commitOffsets(ctx, offsets)

	p.report.Store(report)
	p.ready.Store(true)
	p.logger.Info("pipeline finished",
		"run_id", report.RunID,
		"observations", len(obs),
		"detections", len(report.Detections),
		"groups", len(report.Groups),
	)
	return report, nil
}

type partitionKey struct {
	topic     string
	partition int
}

// extract reads batches until the source is drained. Parsed observations are
// returned with the last committable record per topic partition.
func (p *Pipeline) extract(ctx context.Context) ([]domain.Observation, map[partitionKey]domain.RawEvent, error) {
	var obs []domain.Observation
	offsets := make(map[partitionKey]domain.RawEvent)
	backoff := initialBackoff
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		start := time.Now()
		batch, err := p.extractor.ExtractBatch(ctx, p.opts.BatchSize)
		if len(batch) > 0 {
			p.metrics.RecordsConsumed.Add(float64(len(batch)))
			p.metrics.BatchSize.Observe(float64(len(batch)))
			parsed, perr := p.transformBatch(ctx, batch, offsets)
			if perr != nil {
				return nil, nil, perr
			}
			obs = append(obs, parsed...)
			p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		}

		if err == nil {
			if len(batch) == 0 {
				p.logger.Info("source drained", "observations", len(obs))
				return obs, offsets, nil
			}
			backoff = initialBackoff
			failures = 0
			continue
		}

		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if errors.Is(err, domain.ErrSourceCorrupt) {
			return nil, nil, fmt.Errorf("extract: %w", err)
		}
		failures++
		if failures > p.opts.MaxRetries {
			return nil, nil, fmt.Errorf("extract: giving up after %d attempts: %w", failures, err)
		}
		p.logger.Error("extract batch failed", "error", err, "attempt", failures, "backoff", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// transformBatch parses each record. Skipped records still advance the
// committed offset so they are not redelivered.
func (p *Pipeline) transformBatch(ctx context.Context, batch []domain.RawEvent, offsets map[partitionKey]domain.RawEvent) ([]domain.Observation, error) {
	out := make([]domain.Observation, 0, len(batch))
	for _, raw := range batch {
		o, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			if !p.opts.SkipInvalid {
				return nil, fmt.Errorf("parse %s offset %d: %w", raw.Topic, raw.Offset, err)
			}
			p.logger.Warn("parse failed, skipping record",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.IngestErrors.Inc()
		} else {
			out = append(out, o)
		}

		if raw.Commit == nil {
			continue
		}
		key := partitionKey{raw.Topic, raw.Partition}
		if prev, ok := offsets[key]; !ok || raw.Offset > prev.Offset {
			offsets[key] = raw
		}
	}
	return out, nil
}

func (p *Pipeline) analyze(ctx context.Context, obs []domain.Observation) (*analysis.Report, error) {
	start := time.Now()
	report, err := p.analyzer.Run(ctx, obs)
	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.AnalysisRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("analyze: %w", err)
	}
	p.metrics.AnalysisRuns.WithLabelValues("success").Inc()
	p.metrics.GroupsAnalyzed.Add(float64(len(report.Groups)))

	var bursts [domain.NumLevels]int
	for _, d := range report.Detections {
		for _, l := range domain.Levels {
			if d.Bursts[l] {
				bursts[l]++
			}
		}
	}
	for _, l := range domain.Levels {
		p.metrics.BurstsDetected.WithLabelValues(l.Key()).Add(float64(bursts[l]))
	}
	return report, nil
}

// withRetry runs fn until it succeeds, the context ends or the retry budget
// is spent.
func (p *Pipeline) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt > p.opts.MaxRetries {
			return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempt, err)
		}
		p.logger.Error(op+" failed", "error", err, "attempt", attempt, "backoff", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// commitOffsets commits the last record of each topic partition. Commit
// failures are logged; the records are redelivered on the next run.
func (p *Pipeline) commitOffsets(ctx context.Context, offsets map[partitionKey]domain.RawEvent) {
	keys := make([]partitionKey, 0, len(offsets))
	for k := range offsets {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b partitionKey) int {
		if c := cmp.Compare(a.topic, b.topic); c != 0 {
			return c
		}
		return cmp.Compare(a.partition, b.partition)
	})
	for _, k := range keys {
		raw := offsets[k]
		if err := raw.Commit(ctx); err != nil {
			p.logger.Warn("commit offset failed", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
		}
	}
}
