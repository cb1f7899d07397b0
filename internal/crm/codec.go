package crm

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCorrupt is returned when the store file cannot be parsed.
var ErrCorrupt = errors.New("crm: corrupt store")

// Decode reads a store file. The header is normalized to Columns: missing
// columns read as empty and unknown columns are dropped. An empty input
// yields no records.
func Decode(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}

	index := make(map[int]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, c := range Columns {
			if h == c {
				index[i] = c
			}
		}
	}
	if len(index) == 0 {
		return nil, fmt.Errorf("%w: no known columns in header %q", ErrCorrupt, header)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		var rec Record
		for i, v := range row {
			if col, ok := index[i]; ok {
				rec.set(col, v)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Encode writes the header followed by one row per record.
func Encode(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("crm: write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("crm: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
