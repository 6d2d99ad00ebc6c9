// Package ingest turns uploaded financial documents into normalized
// transactions: format detection, row extraction, field normalization and the
// materialization pipeline that persists the result.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions the extractor does not
// understand.
var ErrUnsupportedFormat = errors.New("ingest: unsupported file format")

// textKey is the pseudo-column carrying one raw document line for formats
// without tabular structure (PDF).
const textKey = "_text"

// Row is one extracted record, keyed by lowercased header name. Text-only
// formats produce rows with a single textKey entry.
type Row map[string]string

// Extract detects the document format from the filename extension and returns
// its records.
func Extract(content []byte, filename string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return extractDelimited(content)
	case ".xlsx", ".xls":
		return extractSpreadsheet(content)
	case ".pdf":
		return extractPDF(content)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// extractDelimited parses CSV-like content. The delimiter is sniffed from the
// header line among comma, semicolon and tab.
func extractDelimited(content []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = sniffDelimiter(content)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("extractDelimited: parsing: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for _, rec := range records[1:] {
		row := Row{}
		for i, v := range rec {
			if i < len(header) && header[i] != "" {
				row[header[i]] = strings.TrimSpace(v)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func sniffDelimiter(content []byte) rune {
	line := string(content)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	best, bestCount := ',', strings.Count(line, ",")
	for _, cand := range []rune{';', '\t'} {
		if n := strings.Count(line, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// extractSpreadsheet reads the first sheet of an Excel workbook, first row as
// header.
func extractSpreadsheet(content []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("extractSpreadsheet: opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("extractSpreadsheet: workbook has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("extractSpreadsheet: reading sheet %q: %w", sheets[0], err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for _, rec := range records[1:] {
		row := Row{}
		for i, v := range rec {
			if i < len(header) && header[i] != "" {
				row[header[i]] = strings.TrimSpace(v)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// extractPDF pulls the plain text out of a PDF and yields one pseudo-row per
// non-empty line. The normalizer pattern-matches transaction lines later.
func extractPDF(content []byte) ([]Row, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extractPDF: opening document: %w", err)
	}

	textReader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extractPDF: extracting text: %w", err)
	}

	text, err := io.ReadAll(textReader)
	if err != nil {
		return nil, fmt.Errorf("extractPDF: reading text: %w", err)
	}

	var rows []Row
	for _, line := range strings.Split(string(text), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, Row{textKey: line})
		}
	}
	return rows, nil
}
