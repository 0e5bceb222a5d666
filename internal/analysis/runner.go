// Package analysis runs a Plan over a set of observations: per-storm
// detection for each basin, then storm summaries, group thresholds and group
// detection for each category group, collected into a Report.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-lightning-bursts/internal/burst"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
	"github.com/couchcryptid/storm-lightning-bursts/internal/threshold"
)

// Runner executes an analysis plan.
type Runner struct {
	plan    Plan
	methods threshold.Set
	logger  *slog.Logger
	newID   func() string
}

// NewRunner validates plan and returns a Runner for it.
func NewRunner(plan Plan, logger *slog.Logger) (*Runner, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	methods, err := plan.ThresholdSet()
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return &Runner{
		plan:    plan,
		methods: methods,
		logger:  logger,
		newID:   uuid.NewString,
	}, nil
}

// Plan returns the plan the runner executes.
func (r *Runner) Plan() Plan { return r.plan }

// Run analyzes obs and returns a new Report. Basins without any eligible
// observation and category groups without any bin are left out of the report.
// The input slice is never modified.
func (r *Runner) Run(ctx context.Context, obs []domain.Observation) (*Report, error) {
	report := &Report{
		RunID:        r.newID(),
		GeneratedAt:  domain.Now(),
		Plan:         r.plan,
		Observations: len(obs),
	}
	r.logger.Info("analysis started", "run_id", report.RunID, "observations", len(obs))

	for _, b := range r.plan.Basins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eligible := domain.Filter(obs, func(o domain.Observation) bool {
			return o.Basin == b && o.Knots >= r.plan.MinKnots && domain.NonZero(o)
		})
		if len(eligible) == 0 {
			r.logger.Info("no eligible observations for basin", "basin", b)
			continue
		}

		dets, err := burst.DetectEntities(eligible, r.methods, burst.DetectOptions{ByPartition: r.plan.ByPartition})
		if err != nil {
			return nil, fmt.Errorf("basin %s: %w", b, err)
		}
		report.Detections = append(report.Detections, dets...)

		for _, g := range r.plan.CategoryGroups {
			gr, ok, err := r.analyzeGroup(b, g, eligible, dets)
			if err != nil {
				return nil, fmt.Errorf("basin %s category %s: %w", b, g, err)
			}
			if ok {
				report.Groups = append(report.Groups, gr)
			}
		}
	}

	r.logger.Info("analysis finished",
		"run_id", report.RunID,
		"detections", len(report.Detections),
		"groups", len(report.Groups),
	)
	return report, nil
}

// variantSource is the set of storm summaries a group threshold variant is
// computed from.
type variantSource struct {
	qualifier domain.Label
	summaries []burst.EntitySummary
}

// analyzeGroup builds the group report for one basin and category group.
// It reports false when the group has no bins.
func (r *Runner) analyzeGroup(b domain.Basin, g domain.CategoryGroup, eligible []domain.Observation, basinDets []burst.Detection) (GroupReport, bool, error) {
	groupObs := domain.Filter(eligible, domain.InCategoryGroup(g))
	if len(groupObs) == 0 {
		r.logger.Debug("no bins in category group", "basin", b, "category_group", g)
		return GroupReport{}, false, nil
	}
	dets := make([]burst.Detection, 0, len(groupObs))
	for _, d := range basinDets {
		if g.Contains(d.Category) {
			dets = append(dets, d)
		}
	}

	sumOpts := burst.SummaryOptions{ByPartition: r.plan.ByPartition}
	summaries := burst.SummarizeEntities(dets, sumOpts)
	gs, err := burst.NewGroupSummary(string(b), string(g), summaries, dets)
	if err != nil {
		return GroupReport{}, false, err
	}
	gr := GroupReport{Basin: b, CategoryGroup: g, EntitySummaries: summaries}

	variants := []variantSource{{qualifier: domain.NoLabel, summaries: summaries}}
	if r.plan.Effective {
		variants = append(variants, variantSource{
			qualifier: domain.NewLabel(QualifierEffective),
			summaries: burst.SummarizeEntities(burst.FilterEffective(dets), sumOpts),
		})
	}

	for _, v := range variants {
		for _, k := range r.plan.StdDevs {
			gt, err := burst.CalculateGroupThresholds(string(b), string(g), v.summaries, k, v.qualifier)
			if err != nil {
				return GroupReport{}, false, err
			}
			meanDets, err := burst.ApplyGroupThresholds(groupObs, gt.Mean)
			if err != nil {
				return GroupReport{}, false, err
			}
			medianDets, err := burst.ApplyGroupThresholds(groupObs, gt.Median)
			if err != nil {
				return GroupReport{}, false, err
			}
			if gs, err = burst.MergeVariant(gs, gt, meanDets, medianDets); err != nil {
				return GroupReport{}, false, err
			}
			gr.Thresholds = append(gr.Thresholds, gt)
			gr.Variants = append(gr.Variants, VariantResult{
				Qualifier:       v.qualifier,
				StdDevs:         k,
				MeanSummaries:   burst.SummarizeEntities(meanDets, sumOpts),
				MedianSummaries: burst.SummarizeEntities(medianDets, sumOpts),
			})
		}
	}
	gr.Summary = gs

	r.logger.Info("group analyzed",
		"basin", b,
		"category_group", g,
		"storms", len(summaries),
		"bins", len(dets),
		"variants", len(gr.Variants),
	)
	return gr, true, nil
}
