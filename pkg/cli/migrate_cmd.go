package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"aggnav/internal/app"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create and seed the sample star in the SQLite warehouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			v, err := app.Migrate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]any{"path": cfg.DBPath, "version": v})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s to version %d\n", cfg.DBPath, v)
			return nil
		},
	}
}
