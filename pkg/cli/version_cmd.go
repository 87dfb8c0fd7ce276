package cli

import (
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"aggnav/internal/config"
	"aggnav/internal/dialect"
	"aggnav/internal/schema"
)

// buildInfo describes the binary and the warehouses it can answer from.
type buildInfo struct {
	Version    string   `json:"version"`
	Commit     string   `json:"commit"`
	GoVersion  string   `json:"go_version"`
	APIVersion string   `json:"schema_api_version"`
	Drivers    []string `json:"drivers"`
	Dialects   []string `json:"dialects"`
}

func currentBuild() buildInfo {
	dialects := make([]string, 0, len(dialect.DialectMap))
	for t := range dialect.DialectMap {
		dialects = append(dialects, string(t))
	}
	slices.Sort(dialects)
	return buildInfo{
		Version:    version,
		Commit:     commit,
		GoVersion:  runtime.Version(),
		APIVersion: schema.SupportedAPIVersion,
		Drivers:    []string{config.DriverSQLite, config.DriverDuckDB},
		Dialects:   dialects,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the aggnav version and supported schema and SQL targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := currentBuild()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), info)
			}
			PrintTable(cmd.OutOrStdout(), []string{"field", "value"}, [][]string{
				{"version", info.Version},
				{"commit", info.Commit},
				{"go", info.GoVersion},
				{"schema", info.APIVersion},
				{"drivers", strings.Join(info.Drivers, ", ")},
				{"dialects", strings.Join(info.Dialects, ", ")},
			})
			return nil
		},
	}
}
