// Package app wires the court runtime: storage, the hearing orchestrator and
// the HTTP and gRPC servers.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/courtroom/internal/services/court/domain/pacing"
	"github.com/louisbranch/courtroom/internal/services/court/importer"
	"github.com/louisbranch/courtroom/internal/services/court/session"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
	courtbbolt "github.com/louisbranch/courtroom/internal/services/court/storage/bbolt"
	courtsqlite "github.com/louisbranch/courtroom/internal/services/court/storage/sqlite"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBBolt  = "bbolt"
)

// StorageConfig selects the court store.
type StorageConfig struct {
	Driver string
	Path   string
}

// OpenStore opens the configured store, creating its directory.
func OpenStore(cfg StorageConfig) (storage.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = filepath.Join("data", "court.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		store, err := courtsqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open court sqlite store: %w", err)
		}
		return store, nil
	case DriverBBolt:
		store, err := courtbbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open court bbolt store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storage driver %q is not supported", cfg.Driver)
	}
}

// RuntimeConfig configures a Runtime.
type RuntimeConfig struct {
	Storage       StorageConfig
	DefaultLocale string
	Pacing        pacing.Config
	// CasesDir, when set, is imported into the store at startup.
	CasesDir string
}

// Runtime is an opened store with its orchestrator.
type Runtime struct {
	Store        storage.Store
	Orchestrator *session.Orchestrator
}

// OpenRuntime opens the store, imports bundled cases and builds the
// orchestrator.
func OpenRuntime(ctx context.Context, cfg RuntimeConfig) (*Runtime, error) {
	store, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(cfg.CasesDir); dir != "" {
		if err := importCases(ctx, store, os.DirFS(dir)); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	orch, err := session.NewOrchestrator(session.Config{
		Cases:         store,
		Matches:       store,
		Audit:         store,
		DefaultLocale: cfg.DefaultLocale,
		Pacing:        cfg.Pacing,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}
	return &Runtime{Store: store, Orchestrator: orch}, nil
}

// Close pauses open hearings and closes the store.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.Orchestrator != nil {
		r.Orchestrator.Close()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			log.Printf("close court store: %v", err)
		}
	}
}

func importCases(ctx context.Context, store storage.CaseStore, fsys fs.FS) error {
	cases, err := importer.LoadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("load cases: %w", err)
	}
	report, err := importer.Import(ctx, store, cases)
	if err != nil {
		return fmt.Errorf("import cases: %w", err)
	}
	log.Printf("court cases imported: %d new, %d already stored", len(report.Imported), len(report.Skipped))
	return nil
}
