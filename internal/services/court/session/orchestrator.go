package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/platform/i18n/catalog"
	"github.com/louisbranch/courtroom/internal/platform/id"
	"github.com/louisbranch/courtroom/internal/random"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/domain/narration"
	"github.com/louisbranch/courtroom/internal/services/court/domain/pacing"
	"github.com/louisbranch/courtroom/internal/services/court/engine"
	"github.com/louisbranch/courtroom/internal/services/court/observability/audit"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

const tracerName = "github.com/louisbranch/courtroom/internal/services/court/session"

// Config wires an Orchestrator.
type Config struct {
	Cases   storage.CaseStore
	Matches storage.MatchStore
	// Audit receives audit events. Nil disables auditing.
	Audit audit.Appender
	// Catalog holds narration text. Defaults to the embedded catalog.
	Catalog       *catalog.Bundle
	DefaultLocale string
	Pacing        pacing.Config
	Scheduler     pacing.Scheduler
	// NewRandom seeds the judge reaction picks of each session.
	NewRandom    func() (random.Source, error)
	Clock        func() time.Time
	WriteTimeout time.Duration
	Logf         func(string, ...any)
	Tracer       trace.Tracer
}

// OpenOptions configures one opened session.
type OpenOptions struct {
	Observer Observer
	// OnPersistError is called for every failed write of the session.
	OnPersistError func(WriteKind, error)
}

// Orchestrator opens hearing sessions over stored cases and matches.
type Orchestrator struct {
	repo     *Repository
	matches  storage.MatchStore
	registry *Registry
	audit    *audit.Emitter

	catalog       *catalog.Bundle
	defaultLocale string
	pacing        pacing.Config
	scheduler     pacing.Scheduler
	newRandom     func() (random.Source, error)
	clock         func() time.Time
	writeTimeout  time.Duration
	logf          func(string, ...any)
	tracer        trace.Tracer
}

// NewOrchestrator builds an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Cases == nil {
		return nil, fmt.Errorf("case store is required")
	}
	if cfg.Matches == nil {
		return nil, fmt.Errorf("match store is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Pacing.ChunkLimit <= 0 {
		cfg.Pacing.ChunkLimit = pacing.DefaultChunkLimit
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = pacing.RealScheduler{}
	}
	if cfg.NewRandom == nil {
		cfg.NewRandom = func() (random.Source, error) { return random.NewSource() }
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	return &Orchestrator{
		repo:          NewRepository(cfg.Cases, cfg.Matches),
		matches:       cfg.Matches,
		registry:      NewRegistry(),
		audit:         audit.NewEmitter(cfg.Audit),
		catalog:       cfg.Catalog,
		defaultLocale: cfg.DefaultLocale,
		pacing:        cfg.Pacing,
		scheduler:     cfg.Scheduler,
		newRandom:     cfg.NewRandom,
		clock:         cfg.Clock,
		writeTimeout:  cfg.WriteTimeout,
		logf:          cfg.Logf,
		tracer:        cfg.Tracer,
	}, nil
}

// ListCases returns one page of playable case summaries.
func (o *Orchestrator) ListCases(ctx context.Context, pageSize int, pageToken string) (storage.CasePage, error) {
	if pageSize <= 0 {
		return storage.CasePage{}, apperrors.New(apperrors.CodeInvalidArgument, "page size must be greater than zero")
	}
	return o.repo.ListCases(ctx, pageSize, pageToken)
}

// ListMatches returns one page of a user's matches.
func (o *Orchestrator) ListMatches(ctx context.Context, userID string, pageSize int, pageToken string) (storage.MatchPage, error) {
	if strings.TrimSpace(userID) == "" {
		return storage.MatchPage{}, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	if pageSize <= 0 {
		return storage.MatchPage{}, apperrors.New(apperrors.CodeInvalidArgument, "page size must be greater than zero")
	}
	return o.matches.ListMatchesByUser(ctx, userID, pageSize, pageToken)
}

// Case returns a validated case.
func (o *Orchestrator) Case(ctx context.Context, caseID string) (casefile.Case, error) {
	return o.repo.Case(ctx, caseID)
}

// Match returns the stored state of a match.
func (o *Orchestrator) Match(ctx context.Context, matchID string) (match.Match, error) {
	return o.repo.Match(ctx, matchID)
}

// CreateMatch creates an empty match of caseID for userID.
func (o *Orchestrator) CreateMatch(ctx context.Context, caseID, userID string) (match.Match, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return match.Match{}, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	c, err := o.repo.Case(ctx, caseID)
	if err != nil {
		return match.Match{}, err
	}
	matchID, err := id.NewID()
	if err != nil {
		return match.Match{}, fmt.Errorf("generate match id: %w", err)
	}
	now := o.now()
	m := match.Match{
		ID:        matchID,
		CaseID:    c.ID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.matches.CreateMatch(ctx, m); err != nil {
		return match.Match{}, fmt.Errorf("create match: %w", err)
	}
	return m, nil
}

// Open loads a match and its case and opens a session. A match with a
// message log resumes where it stopped without replaying narration; an
// empty one waits for Start.
func (o *Orchestrator) Open(ctx context.Context, matchID string, opts OpenOptions) (s *Session, err error) {
	ctx, span := o.tracer.Start(ctx, "court.session.open", trace.WithAttributes(attribute.String("court.match_id", matchID)))
	defer func() { endSpan(span, err) }()

	m, err := o.repo.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	c, err := o.repo.Case(ctx, m.CaseID)
	if err != nil {
		return nil, err
	}
	source, err := o.newRandom()
	if err != nil {
		return nil, fmt.Errorf("seed session random: %w", err)
	}

	s = &Session{
		orch:           o,
		subject:        audit.Subject{MatchID: m.ID, CaseID: c.ID, UserID: m.UserID},
		observer:       opts.Observer,
		onPersistError: opts.OnPersistError,
		closed:         make(chan struct{}),
		forwarded:      make(chan struct{}),
	}
	if err := o.registry.claim(m.ID, s); err != nil {
		return nil, err
	}
	if m.PausedAt != nil && !m.Terminal() {
		if err := o.resume(ctx, &m); err != nil {
			o.registry.release(m.ID, s)
			return nil, err
		}
	}
	s.writer = NewWriter(WriterConfig{
		Store:   o.matches,
		MatchID: m.ID,
		Timeout: o.writeTimeout,
		OnComplete: func(kind WriteKind, err error) {
			s.writeCompleted(context.Background(), kind, err)
		},
		Logf: o.logf,
	})
	eng, err := engine.New(engine.Config{
		Case:      c,
		Match:     m,
		Narrator:  narration.New(o.catalog, c, o.defaultLocale),
		Random:    source,
		Scheduler: o.scheduler,
		Pacing:    o.pacing,
		Persister: s.writer,
		Clock:     o.clock,
		Logf:      o.logf,
	})
	if err != nil {
		s.writer.Close()
		o.registry.release(m.ID, s)
		return nil, err
	}
	s.engine = eng
	s.writer.Start()
	s.notify()
	go s.forward()
	span.SetAttributes(attribute.String("court.state", string(eng.Snapshot().State)))
	return s, nil
}

// resume clears the stored pause of m before it is played again.
func (o *Orchestrator) resume(ctx context.Context, m *match.Match) error {
	progress := match.Progress{
		Messages:         m.Messages,
		Score:            m.Score,
		Choices:          m.Choices,
		CurrentTurnIndex: m.CurrentTurnIndex,
		ComboCurrent:     m.ComboCurrent,
		ComboMax:         m.ComboMax,
	}
	if err := o.matches.SaveMatchProgress(ctx, m.ID, progress); err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodePersistFailed, "resume write failed", map[string]string{"match_id": m.ID}, err)
	}
	m.PausedAt = nil
	return nil
}

// Active returns the open session of matchID.
func (o *Orchestrator) Active(matchID string) (*Session, bool) {
	return o.registry.Active(matchID)
}

// Close closes every open session.
func (o *Orchestrator) Close() {
	o.registry.closeAll()
}

func (o *Orchestrator) now() time.Time {
	return o.clock().UTC()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	span.End()
}
