// Command validate checks a report written by the bursts command against the
// input table it was computed from. It verifies record counts, burst flags,
// storm summary arithmetic and group threshold coverage, then reruns the
// analysis with the report's plan and diffs the result.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input data/timebins.csv \
//	  -report out/report.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/storm-lightning-bursts/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
	"github.com/couchcryptid/storm-lightning-bursts/internal/burst"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	input := flag.String("input", "", "path to the input time-bin CSV")
	reportPath := flag.String("report", "", "path to report.json")
	skipInvalid := flag.Bool("skip-invalid", false, "skip input records that fail to parse")
	flag.Parse()

	if *input == "" || *reportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*input, *reportPath, *skipInvalid); code != 0 {
		os.Exit(code)
	}
}

func run(inputPath, reportPath string, skipInvalid bool) int {
	fmt.Println("=== Lightning Burst Report Validation ===")
	fmt.Println()

	obs, skipped, err := loadObservations(inputPath, skipInvalid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load input: %v\n", err)
		return 1
	}

	report, err := loadReport(reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load report: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateInputParity(obs, report),
		validateDetections(report),
		validateStormSummaries(report),
		validateGroupThresholds(report),
		validateReproducible(obs, report),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d input (%d skipped), %d detections, %d groups\n",
		len(obs), skipped, len(report.Detections), len(report.Groups))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func loadObservations(path string, skipInvalid bool) ([]domain.Observation, int, error) {
	src, err := csvfile.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return nil, 0, err
	}
	defer src.Close()

	var obs []domain.Observation
	skipped := 0
	for {
		batch, err := src.ExtractBatch(context.Background(), 500)
		if err != nil {
			return nil, 0, err
		}
		if len(batch) == 0 {
			return obs, skipped, nil
		}
		for _, raw := range batch {
			o, err := domain.ParseRawEvent(raw)
			if err != nil {
				if skipInvalid {
					skipped++
					continue
				}
				return nil, 0, fmt.Errorf("line %d: %w", raw.Offset, err)
			}
			obs = append(obs, o)
		}
	}
}

func loadReport(path string) (*analysis.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r analysis.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ── Phases ──

func validateInputParity(obs []domain.Observation, report *analysis.Report) *phase {
	p := &phase{name: "Input parity"}
	if report.Observations != len(obs) {
		p.errorf("report counts %d observations, input has %d", report.Observations, len(obs))
	}

	eligible := 0
	for _, o := range obs {
		if slices.Contains(report.Plan.Basins, o.Basin) && o.Knots >= report.Plan.MinKnots && o.Count > 0 {
			eligible++
		}
	}
	if eligible != len(report.Detections) {
		p.errorf("expected %d detections for eligible bins, report has %d", eligible, len(report.Detections))
	}
	return p
}

func validateDetections(report *analysis.Report) *phase {
	p := &phase{name: "Detection flags"}
	if !slices.IsSortedFunc(report.Detections, func(a, b burst.Detection) int {
		return domain.CompareObservations(a.Observation, b.Observation)
	}) {
		p.errorf("detections are not sorted by storm and time")
	}

	for _, d := range report.Detections {
		where := fmt.Sprintf("%s %s %s", d.EntityID, d.Time.Format("2006-01-02 15:04"), d.Partition)
		if d.Count == 0 {
			p.errorf("%s: zero-count bin was detected", where)
		}
		if d.Knots < report.Plan.MinKnots {
			p.errorf("%s: %.0f kt is below the %.0f kt cutoff", where, d.Knots, report.Plan.MinKnots)
		}
		for _, l := range domain.Levels {
			t := d.Thresholds[l]
			want := t != nil && d.LogCount > *t
			if d.Bursts[l] != want {
				p.errorf("%s: %s flag %t disagrees with threshold", where, l, d.Bursts[l])
			}
		}
		for _, m := range domain.Methods {
			t1 := d.Thresholds[domain.LevelOf(m, domain.Tier1)]
			t2 := d.Thresholds[domain.LevelOf(m, domain.Tier2)]
			if t1 != nil && t2 != nil && *t1 > *t2 {
				p.errorf("%s: %s tier 1 threshold %g exceeds tier 2 %g", where, m.Key(), *t1, *t2)
			}
		}
	}
	return p
}

func validateStormSummaries(report *analysis.Report) *phase {
	p := &phase{name: "Storm summary arithmetic"}
	check := func(where string, s burst.EntitySummary) {
		for _, l := range domain.Levels {
			if s.Bursts[l] > s.TotalBins {
				p.errorf("%s %s: %d bursts in %d bins", where, l, s.Bursts[l], s.TotalBins)
			}
			if want := burst.Percentage(s.Bursts[l], s.TotalBins); s.Percent[l] != want {
				p.errorf("%s %s: percentage %g, want %g", where, l, s.Percent[l], want)
			}
		}
	}
	for _, g := range report.Groups {
		for _, s := range g.EntitySummaries {
			check(fmt.Sprintf("%s/%s %s", g.Basin, g.CategoryGroup, s.EntityID), s)
		}
		for _, v := range g.Variants {
			for _, s := range slices.Concat(v.MeanSummaries, v.MedianSummaries) {
				check(fmt.Sprintf("%s/%s %s %s", g.Basin, g.CategoryGroup, v.Qualifier, s.EntityID), s)
			}
		}
	}
	return p
}

func validateGroupThresholds(report *analysis.Report) *phase {
	p := &phase{name: "Group threshold coverage"}
	perQualifier := len(report.Plan.StdDevs)
	qualifiers := 1
	if report.Plan.Effective {
		qualifiers = 2
	}
	for _, g := range report.Groups {
		where := fmt.Sprintf("%s/%s", g.Basin, g.CategoryGroup)
		if len(g.Thresholds) != qualifiers*perQualifier {
			p.errorf("%s: %d threshold variants, want %d", where, len(g.Thresholds), qualifiers*perQualifier)
		}
		if len(g.Variants) != len(g.Thresholds) {
			p.errorf("%s: %d variant results for %d threshold variants", where, len(g.Variants), len(g.Thresholds))
		}
		for _, th := range g.Thresholds {
			if !slices.Contains(report.Plan.StdDevs, th.StdDevs) {
				p.errorf("%s: variant at %g SD is not in the plan", where, th.StdDevs)
			}
		}
		for _, v := range g.Variants {
			if len(v.MeanSummaries) != len(v.MedianSummaries) {
				p.errorf("%s %s %g SD: %d mean-based vs %d median-based storms",
					where, v.Qualifier, v.StdDevs, len(v.MeanSummaries), len(v.MedianSummaries))
			}
		}
	}
	return p
}

func validateReproducible(obs []domain.Observation, report *analysis.Report) *phase {
	p := &phase{name: "Reproducible from input"}
	runner, err := analysis.NewRunner(report.Plan, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		p.errorf("report plan is invalid: %v", err)
		return p
	}
	again, err := runner.Run(context.Background(), obs)
	if err != nil {
		p.errorf("rerun failed: %v", err)
		return p
	}

	if diff := cmp.Diff(report.Detections, again.Detections); diff != "" {
		p.errorf("detections differ (-report +rerun):\n%s", diff)
	}
	if len(report.Groups) != len(again.Groups) {
		p.errorf("report has %d groups, rerun has %d", len(report.Groups), len(again.Groups))
		return p
	}
	for i, g := range report.Groups {
		h := again.Groups[i]
		if diff := cmp.Diff(g.Thresholds, h.Thresholds); diff != "" {
			p.errorf("%s/%s thresholds differ (-report +rerun):\n%s", g.Basin, g.CategoryGroup, diff)
		}
		if diff := cmp.Diff(g.EntitySummaries, h.EntitySummaries); diff != "" {
			p.errorf("%s/%s storm summaries differ (-report +rerun):\n%s", g.Basin, g.CategoryGroup, diff)
		}
	}
	return p
}
