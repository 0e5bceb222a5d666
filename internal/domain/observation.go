package domain

import (
	"cmp"
	"slices"
	"time"
)

// Observation is one time bin for one storm. Observations are immutable once
// derived; detectors copy them into new result rows.
type Observation struct {
	EntityID         string    `json:"storm_code"`
	EntityName       string    `json:"storm_name,omitempty"`
	Time             time.Time `json:"time_bin"`
	Count            int       `json:"lightning_count"`
	LogCount         float64   `json:"log_lightning_count"`
	Basin            Basin     `json:"basin"`
	Category         string    `json:"current_category"`
	Intensification  string    `json:"intensification_category_5,omitempty"`
	Intensification3 string    `json:"intensification_category_3,omitempty"`
	Partition        Label     `json:"shear_quad"`
	Knots            float64   `json:"knots"`
	Pressure         *float64  `json:"pressure"`
}

// CompareObservations orders by entity, then time, then sub-partition.
func CompareObservations(a, b Observation) int {
	if c := cmp.Compare(a.EntityID, b.EntityID); c != 0 {
		return c
	}
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.Partition.String(), b.Partition.String())
}

// SortObservations returns a sorted copy of obs.
func SortObservations(obs []Observation) []Observation {
	out := slices.Clone(obs)
	slices.SortStableFunc(out, CompareObservations)
	return out
}

// Filter returns the observations for which keep returns true, in input order.
func Filter(obs []Observation, keep func(Observation) bool) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// NonZero keeps observations with at least one lightning stroke.
func NonZero(o Observation) bool { return o.Count != 0 }

// InBasin keeps observations from basin b.
func InBasin(b Basin) func(Observation) bool {
	return func(o Observation) bool { return o.Basin == b }
}

// InCategoryGroup keeps observations whose current category belongs to g.
func InCategoryGroup(g CategoryGroup) func(Observation) bool {
	return func(o Observation) bool { return g.Contains(o.Category) }
}

// MinKnots keeps observations with a current wind speed of at least knots.
func MinKnots(knots float64) func(Observation) bool {
	return func(o Observation) bool { return o.Knots >= knots }
}
