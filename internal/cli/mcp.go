package cli

import (
	"github.com/spf13/cobra"

	"github.com/habitatfuturo/habitat/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve lead tools over the Model Context Protocol (stdio)",
		Long: `Start an MCP server on stdin/stdout exposing:

  lead_count       number of stored records
  recent_leads     last records (name, phone, appointment, interest)
  register_lead    create or update a record
  list_properties  the agency inventory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			store := a.store()
			srv := mcp.NewServer(mcp.Options{
				Store:    store,
				Catalog:  a.cfg.Catalog,
				Logger:   a.logger,
				Version:  version,
				OnRecord: autoExporter(a.cfg, store, a.logger),
			})
			return srv.ServeStdio()
		},
	}
}
