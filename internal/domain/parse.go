package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are the time_bin formats seen in upstream exports.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseRawEvent deserializes a RawEvent's value into an Observation.
func ParseRawEvent(raw RawEvent) (Observation, error) {
	var rec RawTimeBinRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Observation{}, fmt.Errorf("parse raw event: %w", err)
	}
	return ParseRecord(rec)
}

// ParseRecord validates a raw time-bin record and derives an Observation:
// basin from the storm code prefix, log1p of the count, the normalized current
// category, the folded intensification label and a nil pressure for zeros.
func ParseRecord(rec RawTimeBinRecord) (Observation, error) {
	id := strings.TrimSpace(rec.StormCode)
	if id == "" {
		return Observation{}, &MissingColumnError{Column: ColumnStormCode}
	}
	if strings.TrimSpace(rec.TimeBin) == "" {
		return Observation{}, &MissingColumnError{Column: ColumnTimeBin}
	}
	if strings.TrimSpace(rec.LightningCount) == "" {
		return Observation{}, &MissingColumnError{Column: ColumnLightningCount}
	}

	basin, err := BasinFromEntityID(id)
	if err != nil {
		return Observation{}, err
	}
	ts, err := parseTimeBin(rec.TimeBin)
	if err != nil {
		return Observation{}, err
	}
	count, err := parseCount(rec.LightningCount)
	if err != nil {
		return Observation{}, err
	}
	category, err := NormalizeCategory(rec.Category)
	if err != nil {
		return Observation{}, err
	}

	intensification := strings.TrimSpace(rec.Intensification)
	return Observation{
		EntityID:         id,
		EntityName:       strings.TrimSpace(rec.StormName),
		Time:             ts,
		Count:            count,
		LogCount:         LogCount(count),
		Basin:            basin,
		Category:         category,
		Intensification:  intensification,
		Intensification3: FoldIntensification(intensification),
		Partition:        NewLabel(strings.TrimSpace(rec.ShearQuad)),
		Knots:            parseFloatOrZero(rec.Knots),
		Pressure:         parsePressure(rec.Pressure),
	}, nil
}

// LogCount is the log-transformed lightning count, log(1+count).
func LogCount(count int) float64 {
	return math.Log1p(float64(count))
}

func parseTimeBin(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse %s %q: unrecognized time format", ColumnTimeBin, s)
}

// parseCount accepts integral values written either as "12" or "12.0".
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", ColumnLightningCount, s, err)
	}
	if v < 0 || v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse %s %q: must be a non-negative integer", ColumnLightningCount, s)
	}
	return int(v), nil
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parsePressure returns nil for blank, unparseable or zero pressure.
func parsePressure(s string) *float64 {
	v := parseFloatOrZero(s)
	if v == 0 {
		return nil
	}
	return &v
}
