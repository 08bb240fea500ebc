package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Row is one raw tabular record keyed by header name.
type Row map[string]string

// NormalizeHeader trims whitespace and a leading byte-order mark and lowercases.
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// ReadCSV lazily yields rows from CSV text whose first record is the header.
// Short rows leave the missing columns out; extra cells are ignored. Iteration
// stops after the first read error, which is yielded with a nil row.
func ReadCSV(r io.Reader) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		cr.TrimLeadingSpace = true

		header, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(nil, fmt.Errorf("read csv header: %w", err))
			return
		}
		for i := range header {
			header[i] = NormalizeHeader(header[i])
		}

		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("read csv: %w", err))
				return
			}
			row := make(Row, len(header))
			for i, v := range rec {
				if i >= len(header) || header[i] == "" {
					continue
				}
				// Repeated headers keep the first non-empty cell.
				if row[header[i]] != "" {
					continue
				}
				row[header[i]] = v
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Rows adapts a fallible sequence into a plain one. The first error stops the
// sequence and is reported by the returned func once iteration is over.
func Rows(seq iter.Seq2[Row, error]) (iter.Seq[Row], func() error) {
	var readErr error
	rows := func(yield func(Row) bool) {
		for row, err := range seq {
			if err != nil {
				readErr = err
				return
			}
			if !yield(row) {
				return
			}
		}
	}
	return rows, func() error { return readErr }
}
