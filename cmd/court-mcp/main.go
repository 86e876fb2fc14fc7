// Package main starts the hearing MCP server over stdio or HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	courtmcpcmd "github.com/louisbranch/courtroom/internal/cmd/courtmcp"
)

func main() {
	cfg, err := courtmcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	// stdout carries the stdio transport.
	log.SetOutput(os.Stderr)
	log.SetPrefix("[COURT-MCP] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := courtmcpcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
