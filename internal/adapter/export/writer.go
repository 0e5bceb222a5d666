// Package export writes analysis reports to a directory as one JSON document
// and a set of CSV tables.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
	"github.com/couchcryptid/storm-lightning-bursts/internal/burst"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// File names written by LoadReport.
const (
	ReportFile      = "report.json"
	DetectionsFile  = "detections.csv"
	StormsFile      = "storm_summaries.csv"
	EvaluationsFile = "threshold_evaluations.csv"
)

// GroupSummaryFile returns the file name of one group summary table.
func GroupSummaryFile(b domain.Basin, g domain.CategoryGroup) string {
	return fmt.Sprintf("group_summary_%s_%s.csv", b, g)
}

type table struct {
	name string
	rows [][]string
}

// Writer writes reports into a directory.
// It implements pipeline.ReportLoader.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer for dir. The directory is created on first write.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// LoadReport writes the report JSON and every CSV table, replacing files from
// an earlier run.
func (w *Writer) LoadReport(ctx context.Context, report *analysis.Report) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tables := []table{
		{DetectionsFile, detectionRows(report.Detections)},
		{StormsFile, stormRows(report.Groups)},
		{EvaluationsFile, evaluationRows(report.Groups)},
	}
	for _, g := range report.Groups {
		tables = append(tables, table{GroupSummaryFile(g.Basin, g.CategoryGroup), groupSummaryRows(g.Summary)})
	}

	if err := w.writeJSON(ReportFile, report); err != nil {
		return err
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeCSV(t.name, t.rows); err != nil {
			return err
		}
	}

	w.logger.Info("report exported", "run_id", report.RunID, "dir", w.dir, "files", len(tables)+1)
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (w *Writer) writeCSV(name string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

func levelHeaders(suffixes ...string) []string {
	out := make([]string, 0, domain.NumLevels*len(suffixes))
	for _, l := range domain.Levels {
		for _, s := range suffixes {
			out = append(out, l.Key()+s)
		}
	}
	return out
}

func detectionRows(dets []burst.Detection) [][]string {
	header := []string{
		domain.ColumnStormCode, domain.ColumnStormName, domain.ColumnTimeBin,
		domain.ColumnLightningCount, "log_lightning_count", "basin", "current_category",
		"intensification_category_3", domain.ColumnShearQuad, domain.ColumnKnots, domain.ColumnPressure,
	}
	for _, l := range domain.Levels {
		header = append(header, l.BurstColumn())
	}
	for _, l := range domain.Levels {
		header = append(header, l.ThresholdColumn())
	}

	rows := make([][]string, 0, len(dets)+1)
	rows = append(rows, header)
	for _, d := range dets {
		row := []string{
			d.EntityID, d.EntityName, d.Time.Format(time.RFC3339),
			strconv.Itoa(d.Count), formatFloat(d.LogCount), string(d.Basin), d.Category,
			d.Intensification3, d.Partition.String(), formatFloat(d.Knots), formatOptional(d.Pressure),
		}
		for _, l := range domain.Levels {
			row = append(row, strconv.FormatBool(d.Bursts[l]))
		}
		for _, l := range domain.Levels {
			row = append(row, formatOptional(d.Thresholds[l]))
		}
		rows = append(rows, row)
	}
	return rows
}

func summaryCells(s burst.EntitySummary) []string {
	row := []string{s.EntityID, s.Partition.String(), strconv.Itoa(s.TotalBins)}
	for _, l := range domain.Levels {
		row = append(row,
			strconv.Itoa(s.Bursts[l]),
			formatOptional(s.Thresholds[l]),
			formatFloat(s.Percent[l]),
		)
	}
	return row
}

var summaryHeader = append(
	[]string{domain.ColumnStormCode, domain.ColumnShearQuad, "total_bins"},
	levelHeaders("_bursts", "_threshold", "_prop")...,
)

func stormRows(groups []analysis.GroupReport) [][]string {
	rows := [][]string{append([]string{"basin", "category_group"}, summaryHeader...)}
	for _, g := range groups {
		for _, s := range g.EntitySummaries {
			rows = append(rows, append([]string{string(g.Basin), string(g.CategoryGroup)}, summaryCells(s)...))
		}
	}
	return rows
}

func evaluationRows(groups []analysis.GroupReport) [][]string {
	rows := [][]string{append([]string{"basin", "category_group", "qualifier", "std_dev", "threshold_calc_type"}, summaryHeader...)}
	for _, g := range groups {
		for _, v := range g.Variants {
			for _, t := range v.Combined(g.CategoryGroup) {
				prefix := []string{string(g.Basin), string(t.CategoryGroup), v.Qualifier.String(), formatFloat(t.StdDevs), t.Basis.String()}
				rows = append(rows, append(prefix, summaryCells(t.EntitySummary)...))
			}
		}
	}
	return rows
}

func groupSummaryRows(gs burst.GroupSummary) [][]string {
	header := []string{
		"Basin", "Category Group", "Threshold",
		"Mean", "Std Dev", "Median", "Min", "Max",
		"Burst Count", "Timebin Count", "Burst Percentage",
	}
	for _, v := range gs.Rows[0].Variants {
		for _, basis := range []burst.Basis{burst.BasisMean, burst.BasisMedian} {
			header = append(header, VariantColumn(v.Qualifier, measureThreshold, basis, v.StdDevs))
		}
		for _, basis := range []burst.Basis{burst.BasisMean, burst.BasisMedian} {
			header = append(header,
				VariantColumn(v.Qualifier, measureBursts, basis, v.StdDevs),
				VariantColumn(v.Qualifier, measurePercentage, basis, v.StdDevs),
			)
		}
	}

	rows := [][]string{header}
	for _, r := range gs.Rows {
		row := []string{string(gs.Basin), string(gs.CategoryGroup), r.Level.Key()}
		if s := r.Stats; s != nil {
			row = append(row, formatFloat(s.Mean), formatFloat(s.StdDev), formatFloat(s.Median), formatFloat(s.Min), formatFloat(s.Max))
		} else {
			row = append(row, "", "", "", "", "")
		}
		row = append(row, strconv.Itoa(r.Own.Bursts), strconv.Itoa(r.Own.Bins), formatFloat(r.Own.Percent))
		for _, v := range r.Variants {
			row = append(row,
				formatOptional(v.MeanThreshold), formatOptional(v.MedianThreshold),
				strconv.Itoa(v.MeanBursts.Bursts), formatFloat(v.MeanBursts.Percent),
				strconv.Itoa(v.MedianBursts.Bursts), formatFloat(v.MedianBursts.Percent),
			)
		}
		rows = append(rows, row)
	}
	return rows
}
