// Package courtctl builds the courtctl command tree: case import, listing,
// match management, terminal play and server health.
package courtctl

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/louisbranch/courtroom/internal/cmd/court"
	entrypoint "github.com/louisbranch/courtroom/internal/platform/cmd"
	"github.com/louisbranch/courtroom/internal/services/court/app"
)

// Config holds courtctl configuration.
type Config struct {
	GRPCAddr string `env:"COURTROOM_GRPC_ADDR" envDefault:"localhost:8091"`
	court.RuntimeConfig
}

// ParseConfig loads environment defaults. Flags override them per command.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewRootCommand builds the command tree over cfg.
func NewRootCommand(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "courtctl",
		Short:         "Manage and play courtroom hearings",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&cfg.StorageDriver, "storage-driver", cfg.StorageDriver, "court storage driver: sqlite or bbolt")
	f.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "court database path")
	f.StringVar(&cfg.DefaultLocale, "locale", cfg.DefaultLocale, "narration locale for cases without one")

	root.AddCommand(newImportCommand(cfg))
	root.AddCommand(newCasesCommand(cfg))
	root.AddCommand(newMatchCommand(cfg))
	root.AddCommand(newPlayCommand(cfg))
	root.AddCommand(newHealthCommand(cfg))
	return root
}

// Execute runs the command tree with telemetry configured.
func Execute(ctx context.Context, cfg *Config, args []string) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCourtCtl, func(ctx context.Context) error {
		root := NewRootCommand(cfg)
		root.SetArgs(args)
		return root.ExecuteContext(ctx)
	})
}

// openRuntime opens the store without importing cases.
func openRuntime(ctx context.Context, cfg *Config) (*app.Runtime, error) {
	runtimeCfg := cfg.Runtime()
	runtimeCfg.CasesDir = ""
	runtime, err := app.OpenRuntime(ctx, runtimeCfg)
	if err != nil {
		return nil, fmt.Errorf("open court runtime: %w", err)
	}
	return runtime, nil
}
