package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmpty is returned when the input has no header row.
var ErrEmpty = errors.New("dataset has no header row")

const utf8BOM = "\ufeff"

// ReadCSV parses delimited text whose first record is the header.
// Blank header cells are named "Unnamed: <i>" and repeated names get ".1",
// ".2" suffixes. The header is widened to the widest record and short rows
// are padded, so every cell keeps its position.
func ReadCSV(r io.Reader, delimiter rune) (*Dataset, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var records [][]string
	width := len(header)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if isBlank(record) {
			continue
		}
		records = append(records, record)
		width = max(width, len(record))
	}

	d := New(headerNames(header, width)...)
	for _, record := range records {
		if len(record) < width {
			record = append(record, make([]string, width-len(record))...)
		}
		d.appendRecord(record)
	}
	return d, nil
}

// headerNames returns width unique column names for header.
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	for i := range names {
		var h string
		if i < len(header) {
			h = header[i]
		}
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}

	taken := make(map[string]bool, width)
	for _, n := range names {
		taken[n] = true
	}
	seen := make(map[string]int, width)
	for i, n := range names {
		seen[n]++
		if seen[n] == 1 {
			continue
		}
		for k := seen[n] - 1; ; k++ {
			candidate := fmt.Sprintf("%s.%d", n, k)
			if !taken[candidate] {
				names[i] = candidate
				taken[candidate] = true
				seen[n] = k + 1
				break
			}
		}
	}
	return names
}

// ReadCSVFile opens path and parses it, choosing the delimiter by extension
// (.tsv is tab separated, anything else comma separated).
func ReadCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	d, err := ReadCSV(f, DelimiterFor(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return d, nil
}

// WriteCSV writes the header followed by every row. Every record has the
// header's width.
func WriteCSV(w io.Writer, d *Dataset, delimiter rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delimiter

	if err := writer.Write(d.columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	record := make([]string, len(d.columns))
	for _, r := range d.rows {
		n := copy(record, r)
		for i := n; i < len(record); i++ {
			record[i] = ""
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes d to path through a temporary file in the same
// directory, so readers never observe a partial artifact.
func WriteCSVFile(path string, d *Dataset) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, d, DelimiterFor(path)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DelimiterFor returns the field separator for a file name.
func DelimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
