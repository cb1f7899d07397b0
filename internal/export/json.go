package export

import (
	"encoding/json"
	"time"

	"github.com/habitatfuturo/habitat/internal/crm"
)

// JSONExporter renders ExportData as structured JSON.
type JSONExporter struct{}

type jsonOutput struct {
	Agency      string       `json:"agency"`
	GeneratedAt string       `json:"generated_at,omitempty"`
	Count       int          `json:"count"`
	Leads       []crm.Record `json:"leads"`
}

func (e *JSONExporter) Export(data ExportData) (string, error) {
	out := jsonOutput{
		Agency: data.Agency,
		Count:  len(data.Records),
		Leads:  data.Records,
	}
	if !data.GeneratedAt.IsZero() {
		out.GeneratedAt = data.GeneratedAt.Format(time.RFC3339)
	}
	// Empty store renders as [] rather than null.
	if out.Leads == nil {
		out.Leads = []crm.Record{}
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
