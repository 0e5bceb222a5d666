package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
)

// LoadPlan reads an analysis plan from a YAML file. Fields left out keep
// their analysis.DefaultPlan values; unknown fields are rejected.
func LoadPlan(path string) (analysis.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return analysis.Plan{}, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	return DecodePlan(f)
}

// DecodePlan decodes and validates a YAML analysis plan.
func DecodePlan(r io.Reader) (analysis.Plan, error) {
	plan := analysis.DefaultPlan()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil && !errors.Is(err, io.EOF) {
		return analysis.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return analysis.Plan{}, err
	}
	return plan, nil
}
