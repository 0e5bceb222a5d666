package analysis

import (
	"time"

	"github.com/couchcryptid/storm-lightning-bursts/internal/burst"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// Report is the output of one analysis run.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Plan        Plan      `json:"plan"`
	// Observations is the number of input bins before any filtering.
	Observations int `json:"observations"`
	// Detections are the per-storm detections of every analyzed basin.
	Detections []burst.Detection `json:"detections"`
	Groups     []GroupReport     `json:"groups"`
}

// GroupReport collects every table produced for one basin and category group.
type GroupReport struct {
	Basin           domain.Basin            `json:"basin"`
	CategoryGroup   domain.CategoryGroup    `json:"category_group"`
	Summary         burst.GroupSummary      `json:"summary"`
	EntitySummaries []burst.EntitySummary   `json:"entity_summaries"`
	Thresholds      []burst.GroupThresholds `json:"thresholds"`
	Variants        []VariantResult         `json:"variants"`
}

// VariantResult holds the storm summaries obtained by applying one group
// threshold variant under the mean and the median basis.
type VariantResult struct {
	Qualifier       domain.Label          `json:"qualifier"`
	StdDevs         float64               `json:"std_dev"`
	MeanSummaries   []burst.EntitySummary `json:"mean_summaries"`
	MedianSummaries []burst.EntitySummary `json:"median_summaries"`
}

// Combined returns the mean and median summaries tagged with the variant's
// std-dev multiple, basis and category group.
func (v VariantResult) Combined(group domain.CategoryGroup) []burst.TaggedEntitySummary {
	return burst.CombineEntitySummaries(v.MeanSummaries, v.MedianSummaries, v.StdDevs, group)
}

// Group returns the report for a basin and category group.
func (r *Report) Group(b domain.Basin, g domain.CategoryGroup) (GroupReport, bool) {
	for _, gr := range r.Groups {
		if gr.Basin == b && gr.CategoryGroup == g {
			return gr, true
		}
	}
	return GroupReport{}, false
}
