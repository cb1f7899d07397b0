// Package export renders the lead store into formats for other tools.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/habitatfuturo/habitat/internal/crm"
)

// ExportData is passed to every Exporter.
type ExportData struct {
	Agency      string
	GeneratedAt time.Time
	Records     []crm.Record
}

// Exporter renders ExportData to a string in a specific format.
type Exporter interface {
	Export(data ExportData) (string, error)
}

// registry maps format names to Exporter implementations.
var registry = map[string]Exporter{
	"csv":      &CSVExporter{},
	"json":     &JSONExporter{},
	"markdown": &MarkdownExporter{},
}

// filenames maps format names to the file auto export writes.
var filenames = map[string]string{
	"csv":      "leads_export.csv",
	"json":     "leads.json",
	"markdown": "LEADS.md",
}

// Get returns the Exporter registered under name, and whether it was found.
func Get(name string) (Exporter, bool) {
	e, ok := registry[name]
	return e, ok
}

// ValidFormats returns the supported export format names, sorted.
func ValidFormats() []string {
	formats := make([]string, 0, len(registry))
	for k := range registry {
		formats = append(formats, k)
	}
	sort.Strings(formats)
	return formats
}

// Filename returns the file name used for format, or "" if unknown.
func Filename(format string) string {
	return filenames[format]
}

// WriteAll renders every known format into dir and returns the written file
// names. Unknown formats are skipped; the first render or write error stops
// the run.
func WriteAll(dir string, formats []string, data ExportData) ([]string, error) {
	var written []string
	for _, format := range formats {
		exporter, ok := Get(format)
		if !ok {
			continue
		}
		output, err := exporter.Export(data)
		if err != nil {
			return written, fmt.Errorf("export %s: %w", format, err)
		}
		name := Filename(format)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(output), 0o644); err != nil {
			return written, fmt.Errorf("export: write %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

// CSVExporter writes the store format itself.
type CSVExporter struct{}

func (e *CSVExporter) Export(data ExportData) (string, error) {
	var b strings.Builder
	if err := crm.Encode(&b, data.Records); err != nil {
		return "", err
	}
	return b.String(), nil
}
