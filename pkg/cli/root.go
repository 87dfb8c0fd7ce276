// Package cli implements the aggnav command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"aggnav/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = PrintJSON(os.Stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// globals are the persistent flags shared by every command.
type globals struct {
	output     string
	envFile    string
	dbPath     string
	driver     string
	schemaPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "aggnav",
		Short:         "Aggregate navigation engine",
		Long:          "Answers measure cells from the cheapest aggregate table of a star schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutputFormat(g.output)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.output, "output", "o", "table", "Output format (table, json)")
	flags.StringVar(&g.envFile, "env-file", ".env", "Environment file read before configuration")
	flags.StringVar(&g.dbPath, "db", "", "Warehouse database path (overrides AGGNAV_DB_PATH)")
	flags.StringVar(&g.driver, "driver", "", "Warehouse driver: sqlite3 or duckdb (overrides AGGNAV_DB_DRIVER)")
	flags.StringVar(&g.schemaPath, "schema", "", "Schema YAML file (overrides AGGNAV_SCHEMA_PATH)")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newServeCmd(g))
	rootCmd.AddCommand(newMigrateCmd(g))
	rootCmd.AddCommand(newCellsCmd(g))
	rootCmd.AddCommand(newExplainCmd(g))
	rootCmd.AddCommand(newTuplesCmd(g))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// loadConfig applies precedence flag > env > .env > default.
func (g *globals) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("driver") {
		switch g.driver {
		case config.DriverSQLite, "sqlite":
			cfg.DBDriver = config.DriverSQLite
		case config.DriverDuckDB:
			cfg.DBDriver = config.DriverDuckDB
		default:
			return nil, fmt.Errorf("unsupported driver %q: use %q or %q", g.driver, config.DriverSQLite, config.DriverDuckDB)
		}
		if os.Getenv("AGGNAV_DIALECT") == "" {
			cfg.Dialect = config.DefaultDialect(cfg.DBDriver)
		}
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = g.dbPath
	}
	if cmd.Flags().Changed("schema") {
		cfg.SchemaPath = g.schemaPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
