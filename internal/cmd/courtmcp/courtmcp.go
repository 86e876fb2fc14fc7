// Package courtmcp parses MCP command flags and selects stdio or HTTP transport.
package courtmcp

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/courtroom/internal/cmd/court"
	entrypoint "github.com/louisbranch/courtroom/internal/platform/cmd"
	"github.com/louisbranch/courtroom/internal/platform/timeouts"
	"github.com/louisbranch/courtroom/internal/services/court/api/mcptools"
	"github.com/louisbranch/courtroom/internal/services/court/app"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds MCP command configuration.
type Config struct {
	HTTPAddr  string `env:"COURTROOM_MCP_HTTP_ADDR" envDefault:"localhost:8092"`
	Transport string `env:"COURTROOM_MCP_TRANSPORT" envDefault:"stdio"`
	court.RuntimeConfig
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	cfg.RuntimeConfig.BindFlags(fs)
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the hearing MCP server.
func Run(ctx context.Context, cfg Config) error {
	transport := strings.ToLower(strings.TrimSpace(cfg.Transport))
	if transport != TransportStdio && transport != TransportHTTP {
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCourtMCP, func(ctx context.Context) error {
		runtime, err := app.OpenRuntime(ctx, cfg.Runtime())
		if err != nil {
			return err
		}
		defer runtime.Close()

		server, err := mcptools.NewServer(mcptools.Config{
			Hearings: runtime.Orchestrator,
			Locale:   cfg.DefaultLocale,
		})
		if err != nil {
			return err
		}
		if transport == TransportStdio {
			return server.Serve(ctx, &mcp.StdioTransport{})
		}
		return serveHTTP(ctx, cfg.HTTPAddr, server)
	})
}

func serveHTTP(ctx context.Context, addr string, server *mcptools.Server) error {
	defer server.Close()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.HTTPHandler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	log.Printf("court mcp listening on %s", addr)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

