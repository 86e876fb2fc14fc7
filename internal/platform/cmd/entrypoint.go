// Package cmd holds the startup plumbing shared by every courtroom binary.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"github.com/louisbranch/courtroom/internal/platform/config"
	"github.com/louisbranch/courtroom/internal/platform/otel"
	"github.com/louisbranch/courtroom/internal/platform/timeouts"
)

// Service names double as the OpenTelemetry service.name of each binary.
const (
	ServiceCourt    = "court"
	ServiceCourtMCP = "court-mcp"
	ServiceCourtCtl = "courtctl"
)

// ParseConfig loads COURTROOM_* environment values into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs applies flags on top of the environment defaults already bound
// to fs.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry installs tracing for service, runs fn and flushes pending
// spans before returning fn's error.
func RunWithTelemetry(ctx context.Context, service string, fn func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if fn == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	return fn(ctx)
}
