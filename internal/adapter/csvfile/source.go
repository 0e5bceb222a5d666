// Package csvfile reads upstream time-bin tables from CSV files.
package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

// Source reads time-bin rows from a CSV file with a header line.
// It implements pipeline.BatchExtractor.
type Source struct {
	path   string
	closer io.Closer
	reader *csv.Reader
	header []string
	line   int64
	err    error
	logger *slog.Logger
}

// Open opens path and validates its header against domain.RequiredColumns.
func Open(path string, logger *slog.Logger) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	s, err := NewSource(f, path, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewSource reads the header from r. name identifies the source in raw
// events and log lines.
func NewSource(r io.Reader, name string, logger *slog.Logger) (*Source, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.MissingColumnError{Column: domain.ColumnStormCode}
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header of %s: %w: %w", name, domain.ErrSourceCorrupt, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for _, col := range domain.RequiredColumns {
		if !slices.Contains(header, col) {
			return nil, &domain.MissingColumnError{Column: col}
		}
	}

	logger.Info("csv source opened", "path", name, "columns", len(header))
	return &Source{path: name, reader: cr, header: header, line: 1, logger: logger}, nil
}

// ExtractBatch reads up to batchSize rows. An empty batch means the file is
// exhausted. After a read error every later call returns the same error.
func (s *Source) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	batch := make([]domain.RawEvent, 0, batchSize)
	for len(batch) < batchSize {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		rec, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		s.line++
		if err != nil {
			s.err = fmt.Errorf("read %s line %d: %w: %w", s.path, s.line, domain.ErrSourceCorrupt, err)
			return batch, s.err
		}
		raw, err := s.toRawEvent(rec)
		if err != nil {
			s.err = err
			return batch, err
		}
		batch = append(batch, raw)
	}
	return batch, nil
}

// Close closes the underlying file when the source was opened by path.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// toRawEvent encodes a row as a JSON object keyed by header name. Missing
// trailing fields are left out; extra fields are ignored.
func (s *Source) toRawEvent(rec []string) (domain.RawEvent, error) {
	row := make(map[string]string, len(s.header))
	for i, col := range s.header {
		if i < len(rec) && col != "" {
			row[col] = rec[i]
		}
	}
	data, err := json.Marshal(row)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("encode %s line %d: %w", s.path, s.line, err)
	}
	return domain.RawEvent{
		Key:    []byte(row[domain.ColumnStormCode]),
		Value:  data,
		Topic:  s.path,
		Offset: s.line,
	}, nil
}
