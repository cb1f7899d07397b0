package cli

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/habitatfuturo/habitat/internal/config"
	"github.com/habitatfuturo/habitat/internal/crm"
	"github.com/habitatfuturo/habitat/internal/export"
)

// autoExportFilenames returns the filenames that auto export would generate
// for the given config.
func autoExportFilenames(cfg config.AutoExportConfig) []string {
	var names []string
	for _, f := range cfg.Formats {
		if name := export.Filename(f); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// autoExporter returns a hook that regenerates the configured export files
// after a record changed, or nil when auto export is off. It is best-effort:
// failures are logged and never abort the caller.
func autoExporter(cfg config.Config, store *crm.Store, logger *log.Logger) func(crm.Result) {
	if !cfg.AutoExport.Enabled || len(cfg.AutoExport.Formats) == 0 {
		return nil
	}
	dir := cfg.ExportDir()
	return func(crm.Result) {
		records, _, err := store.Load()
		if err != nil {
			logger.Warn("auto export skipped", "err", err)
			return
		}
		written, err := export.WriteAll(dir, cfg.AutoExport.Formats, export.ExportData{
			Agency:      cfg.Catalog.Agency,
			GeneratedAt: time.Now(),
			Records:     records,
		})
		if err != nil {
			logger.Warn("auto export failed", "err", err)
		}
		if len(written) > 0 {
			logger.Debug("auto exported", "files", strings.Join(written, ", "), "dir", dir)
		}
	}
}
