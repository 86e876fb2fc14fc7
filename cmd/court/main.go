// Package main starts the court hearing server and handles termination.
//
// The process serves hearings over WebSocket and reports its health over
// gRPC; cases and matches stay in the configured store.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	courtcmd "github.com/louisbranch/courtroom/internal/cmd/court"
)

func main() {
	cfg, err := courtcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[COURT] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := courtcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
