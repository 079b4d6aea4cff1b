package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Row is one imported record keyed by canonical field name. Fields whose
// headers could not be mapped keep their raw header as the key.
type Row map[string]string

var ErrEmptyFile = errors.New("import file contains no data rows")

// ParseFile reads a CSV or XLSX export into ordered rows keyed by
// canonical field names. Header normalization and required-header
// validation happen here, before any row leaves the parser, so a file
// with unusable headers fails fast.
func ParseFile(r io.Reader, fileName string, logger *logrus.Logger) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xls":
		return parseXLSX(r, logger)
	case ".csv", "":
		return parseCSV(r, logger)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(fileName))
	}
}

func parseCSV(r io.Reader, logger *logrus.Logger) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return recordsToRows(records, logger)
}

func parseXLSX(r io.Reader, logger *logrus.Logger) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("Excel file has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return recordsToRows(records, logger)
}

func recordsToRows(records [][]string, logger *logrus.Logger) ([]Row, error) {
	if len(records) < 2 {
		return nil, ErrEmptyFile
	}

	rawHeaders := records[0]
	mapping := NormalizeHeaders(rawHeaders)
	if unmatched := UnmatchedHeaders(mapping); len(unmatched) > 0 {
		logger.WithField("headers", unmatched).Warn("unrecognized column headers passed through unchanged")
	}
	if err := ValidateRequiredHeaders(mapping); err != nil {
		return nil, err
	}

	canonical := make([]string, len(rawHeaders))
	for i, raw := range rawHeaders {
		canonical[i] = mapping[raw]
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(canonical))
		for i, field := range canonical {
			if i < len(record) {
				row[field] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CountRows returns the number of data rows without validating headers,
// used when an upload is registered before processing starts.
func CountRows(r io.Reader, fileName string) (int, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xls":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return 0, fmt.Errorf("failed to open Excel file: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return 0, nil
		}
		records, err := f.GetRows(sheets[0])
		if err != nil {
			return 0, err
		}
		if len(records) <= 1 {
			return 0, nil
		}
		return len(records) - 1, nil
	default:
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		count := 0
		for {
			_, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return 0, err
			}
			count++
		}
		if count <= 1 {
			return 0, nil
		}
		return count - 1, nil
	}
}
