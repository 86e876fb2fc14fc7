package courtmcp

import (
	"context"
	"flag"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("court-mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "localhost:8092" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != TransportStdio {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.DBPath != "data/court.db" {
		t.Fatalf("expected shared runtime defaults, got %q", cfg.DBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("COURTROOM_MCP_TRANSPORT", "http")

	fs := flag.NewFlagSet("court-mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", "flag-http", "-storage-driver", "bbolt"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != TransportHTTP || cfg.HTTPAddr != "flag-http" || cfg.StorageDriver != "bbolt" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestRunUnsupportedTransport(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "websocket"})
	if err == nil {
		t.Fatal("expected error for unsupported transport")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("expected 'not supported' in error, got: %v", err)
	}
}
