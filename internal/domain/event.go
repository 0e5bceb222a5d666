package domain

import (
	"context"
	"time"
)

// RawTimeBinRecord is the flat string-valued record produced by the upstream
// inner-core data pipeline, one per storm time bin.
type RawTimeBinRecord struct {
	StormCode       string `json:"storm_code"`
	StormName       string `json:"storm_name,omitempty"`
	TimeBin         string `json:"time_bin"`
	LightningCount  string `json:"lightning_count"`
	Knots           string `json:"knots,omitempty"`
	Pressure        string `json:"pressure,omitempty"`
	Category        string `json:"TC_Category,omitempty"`
	Intensification string `json:"Intensification_Category,omitempty"`
	ShearQuad       string `json:"shear_quad,omitempty"` // DL, DR, UL or UR
}

// Column names for RawTimeBinRecord fields.
const (
	ColumnStormCode       = "storm_code"
	ColumnStormName       = "storm_name"
	ColumnTimeBin         = "time_bin"
	ColumnLightningCount  = "lightning_count"
	ColumnKnots           = "knots"
	ColumnPressure        = "pressure"
	ColumnCategory        = "TC_Category"
	ColumnIntensification = "Intensification_Category"
	ColumnShearQuad       = "shear_quad"
)

// RequiredColumns must be present in every input table.
var RequiredColumns = []string{ColumnStormCode, ColumnTimeBin, ColumnLightningCount}

// RawEvent represents one unparsed input record and where it came from.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string // Kafka topic or source file path
	Partition int
	Offset    int64 // Kafka offset or CSV line number
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is a serialized report record destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
