package infrastructure

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"leadsync/internal/domain"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"

	"github.com/jszwec/csvutil"
	"golang.org/x/text/encoding/htmlindex"
)

const DefaultInputEncoding = "iso-8859-1"

// Slash dates are month-first, as CRM report exports write them.
var crmDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006, 3:04 PM",
}

type crmRow struct {
	CreatedDate  string `csv:"House Shifting Opportunity: Created Date"`
	Mobile       string `csv:"Mobile"`
	Status       string `csv:"Status"`
	ShiftingType string `csv:"Shifting Type"`
}

// ParseCRMDate parses a CRM created date. ok is false when value matches no
// known layout.
func ParseCRMDate(value string) (t time.Time, ok bool) {
	value = strings.TrimSpace(value)
	for _, layout := range crmDateFormats {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// peekedReader yields a record already read from r before the rest of r.
type peekedReader struct {
	first []string
	r     *csv.Reader
}

func (p *peekedReader) Read() ([]string, error) {
	if p.first != nil {
		rec := p.first
		p.first = nil
		return rec, nil
	}
	return p.r.Read()
}

// decodingReader wraps r so that its bytes are decoded from the named
// charset to UTF-8.
func decodingReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" {
		charset = DefaultInputEncoding
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported input encoding %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(r), nil
}

func newCSVReader(r io.Reader, charset string) (*csv.Reader, []string, error) {
	decoded, err := decodingReader(r, charset)
	if err != nil {
		return nil, nil, err
	}
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return reader, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(trimBOM(header[i]))
	}
	return reader, header, nil
}

// trimBOM drops a UTF-8 byte order mark, also in its latin-1 decoded form.
func trimBOM(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimPrefix(s, "\u00ef\u00bb\u00bf")
}

// ReadCRMCSV decodes a CRM opportunity export. A file without data rows is an
// empty table whatever its header. Rows whose created date does not parse are
// dropped and counted in SkippedRows.
func ReadCRMCSV(r io.Reader, charset string) (*domain.CRMTable, error) {
	reader, header, err := newCSVReader(r, charset)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return &domain.CRMTable{}, nil
	}

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &domain.CRMTable{Columns: header}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode CRM row 1: %w", err)
	}
	if missing := domain.MissingColumns(header, domain.CRMRequiredColumns); len(missing) > 0 {
		return nil, &domain.SchemaError{Source: "crm", Missing: missing}
	}

	dec, err := csvutil.NewDecoder(&peekedReader{first: first, r: reader}, header...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CRM decoder: %w", err)
	}

	table := &domain.CRMTable{Columns: header}
	for line := 1; ; line++ {
		var row crmRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode CRM row %d: %w", line, err)
		}
		created, ok := ParseCRMDate(row.CreatedDate)
		if !ok {
			table.SkippedRows++
			continue
		}
		table.Records = append(table.Records, domain.CRMRecord{
			Mobile:       strings.TrimSpace(row.Mobile),
			CreatedDate:  created,
			Status:       domain.Status(strings.TrimSpace(row.Status)),
			ShiftingType: strings.TrimSpace(row.ShiftingType),
		})
	}
	return table, nil
}

// ReadAuxCSV reads an arbitrary auxiliary dataset. Every column is kept as
// text.
func ReadAuxCSV(r io.Reader, charset string) (*domain.AuxTable, error) {
	reader, header, err := newCSVReader(r, charset)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return &domain.AuxTable{}, nil
	}

	table := &domain.AuxTable{Columns: header}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read auxiliary row %d: %w", line, err)
		}
		row := make(map[string]string, len(header))
		for i, c := range header {
			if i < len(record) {
				row[c] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// CSVSource serves a CRM or auxiliary table from an uploaded or on-disk CSV.
// It implements domain.CRMSource and domain.AuxSource.
type CSVSource struct {
	name    string
	open    func() (io.ReadCloser, error)
	charset string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewCSVFileSource(path, charset string, logger *logger.Logger, metrics *metrics.Metrics) *CSVSource {
	return &CSVSource{
		name:    path,
		open:    func() (io.ReadCloser, error) { return os.Open(path) },
		charset: charset,
		logger:  logger,
		metrics: metrics,
	}
}

// NewCSVBytesSource serves data held in memory, e.g. a multipart upload.
func NewCSVBytesSource(name string, data []byte, charset string, logger *logger.Logger, metrics *metrics.Metrics) *CSVSource {
	return &CSVSource{
		name:    name,
		open:    func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
		charset: charset,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *CSVSource) FetchCRM(ctx context.Context) (*domain.CRMTable, error) {
	start := time.Now()
	rc, err := s.open()
	if err != nil {
		s.metrics.RecordExternalAPIFailure("crm_csv", "open")
		return nil, fmt.Errorf("failed to open CRM file %s: %w", s.name, err)
	}
	defer rc.Close()

	table, err := ReadCRMCSV(rc, s.charset)
	if err != nil {
		s.metrics.RecordExternalAPIFailure("crm_csv", "decode")
		return nil, err
	}
	s.metrics.RecordExternalAPICall("crm_csv", "success", time.Since(start))
	s.metrics.RecordSkipped("crm", "bad_date", table.SkippedRows)

	log := s.logger.WithContext(ctx).WithField("file", s.name)
	if table.SkippedRows > 0 {
		log.WithField("skipped", table.SkippedRows).Warn("Dropped CRM rows with unparseable created dates")
	}
	log.WithField("records", len(table.Records)).Info("Loaded CRM data")
	return table, nil
}

func (s *CSVSource) FetchAux(ctx context.Context) (*domain.AuxTable, error) {
	start := time.Now()
	rc, err := s.open()
	if err != nil {
		s.metrics.RecordExternalAPIFailure("aux_csv", "open")
		return nil, fmt.Errorf("failed to open auxiliary file %s: %w", s.name, err)
	}
	defer rc.Close()

	table, err := ReadAuxCSV(rc, s.charset)
	if err != nil {
		s.metrics.RecordExternalAPIFailure("aux_csv", "decode")
		return nil, err
	}
	s.metrics.RecordExternalAPICall("aux_csv", "success", time.Since(start))

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"file":    s.name,
		"rows":    len(table.Rows),
		"columns": len(table.Columns),
	}).Info("Loaded auxiliary data")
	return table, nil
}
