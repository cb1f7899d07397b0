package export

import (
	"fmt"
	"strings"

	"github.com/habitatfuturo/habitat/internal/crm"
)

// MarkdownExporter renders the leads as a markdown table.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(data ExportData) (string, error) {
	var b strings.Builder
	title := data.Agency
	if title == "" {
		title = "Leads"
	}
	fmt.Fprintf(&b, "# %s - Clientes\n\n", title)
	if !data.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generado: %s_\n\n", data.GeneratedAt.Format(crm.TimeLayout))
	}

	if len(data.Records) == 0 {
		b.WriteString("Sin registros.\n")
		return b.String(), nil
	}

	cols := append([]string{crm.ColRegistered}, crm.PreviewColumns...)
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(cols)) + "\n")
	for _, r := range data.Records {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(r.Get(c))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	fmt.Fprintf(&b, "\nTotal: %d\n", len(data.Records))
	return b.String(), nil
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
