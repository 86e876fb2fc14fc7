// Package main is the courtctl CLI: import cases, list them, create matches,
// play them in the terminal and check a running court server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	courtctl "github.com/louisbranch/courtroom/internal/cmd/courtctl"
)

func main() {
	log.SetPrefix("[COURTCTL] ")
	cfg, err := courtctl.ParseConfig()
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := courtctl.Execute(ctx, &cfg, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
