// Package court parses court command flags and runs the hearing server.
package court

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/courtroom/internal/platform/cmd"
	"github.com/louisbranch/courtroom/internal/services/court/app"
	"github.com/louisbranch/courtroom/internal/services/court/domain/pacing"
)

// RuntimeConfig holds the storage, locale and pacing settings shared by the
// court binaries.
type RuntimeConfig struct {
	StorageDriver  string        `env:"COURTROOM_STORAGE_DRIVER"       envDefault:"sqlite"`
	DBPath         string        `env:"COURTROOM_DB_PATH"              envDefault:"data/court.db"`
	CasesDir       string        `env:"COURTROOM_CASES_DIR"`
	DefaultLocale  string        `env:"COURTROOM_DEFAULT_LOCALE"       envDefault:"en-US"`
	ChunkLimit     int           `env:"COURTROOM_PACING_CHUNK_LIMIT"   envDefault:"200"`
	TypingDelay    time.Duration `env:"COURTROOM_PACING_TYPING_DELAY"  envDefault:"1200ms"`
	ThinkingDelay  time.Duration `env:"COURTROOM_PACING_THINKING_DELAY" envDefault:"1500ms"`
	NarrationDelay time.Duration `env:"COURTROOM_PACING_NARRATION_DELAY" envDefault:"800ms"`
}

// BindFlags registers flag overrides for the runtime settings.
func (c *RuntimeConfig) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.StorageDriver, "storage-driver", c.StorageDriver, "court storage driver: sqlite or bbolt")
	fs.StringVar(&c.DBPath, "db-path", c.DBPath, "court database path")
	fs.StringVar(&c.CasesDir, "cases-dir", c.CasesDir, "directory of case YAML files imported at startup")
	fs.StringVar(&c.DefaultLocale, "locale", c.DefaultLocale, "narration locale for cases without one")
	fs.IntVar(&c.ChunkLimit, "pacing-chunk-limit", c.ChunkLimit, "maximum characters per displayed message")
	fs.DurationVar(&c.TypingDelay, "pacing-typing-delay", c.TypingDelay, "delay between chunks of one message")
	fs.DurationVar(&c.ThinkingDelay, "pacing-thinking-delay", c.ThinkingDelay, "delay before the judge reacts to a choice")
	fs.DurationVar(&c.NarrationDelay, "pacing-narration-delay", c.NarrationDelay, "delay before narrated lines")
}

// Runtime converts the settings for app.OpenRuntime.
func (c RuntimeConfig) Runtime() app.RuntimeConfig {
	return app.RuntimeConfig{
		Storage:       app.StorageConfig{Driver: c.StorageDriver, Path: c.DBPath},
		DefaultLocale: c.DefaultLocale,
		CasesDir:      c.CasesDir,
		Pacing: pacing.Config{
			ChunkLimit:     c.ChunkLimit,
			TypingDelay:    c.TypingDelay,
			ThinkingDelay:  c.ThinkingDelay,
			NarrationDelay: c.NarrationDelay,
		},
	}
}

// Config holds court command configuration.
type Config struct {
	HTTPAddr string `env:"COURTROOM_HTTP_ADDR" envDefault:":8090"`
	GRPCAddr string `env:"COURTROOM_GRPC_ADDR" envDefault:":8091"`
	RuntimeConfig
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "court HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "court gRPC health listen address")
	cfg.RuntimeConfig.BindFlags(fs)
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the court server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCourt, func(ctx context.Context) error {
		if err := app.Run(ctx, app.Config{
			HTTPAddr: cfg.HTTPAddr,
			GRPCAddr: cfg.GRPCAddr,
			Runtime:  cfg.Runtime(),
		}); err != nil {
			return fmt.Errorf("serve court: %w", err)
		}
		return nil
	})
}
