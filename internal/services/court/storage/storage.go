// Package storage defines persistence contracts for cases, matches and audit
// events.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a record with the same id already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// CasePage stores one page of case summaries.
type CasePage struct {
	Cases         []casefile.Summary
	NextPageToken string
}

// CaseStore persists authored cases. Cases are immutable once written.
type CaseStore interface {
	PutCase(ctx context.Context, c casefile.Case) error
	GetCase(ctx context.Context, id string) (casefile.Case, error)
	ListCases(ctx context.Context, pageSize int, pageToken string) (CasePage, error)
}

// MatchPage stores one page of matches.
type MatchPage struct {
	Matches       []match.Match
	NextPageToken string
}

// MatchStore persists play sessions. Progress and result writes overwrite
// the stored fields wholesale; the last write wins.
type MatchStore interface {
	CreateMatch(ctx context.Context, m match.Match) error
	GetMatch(ctx context.Context, id string) (match.Match, error)
	SaveMatchProgress(ctx context.Context, id string, p match.Progress) error
	SaveMatchResult(ctx context.Context, id string, r match.Result) error
	ListMatchesByUser(ctx context.Context, userID string, pageSize int, pageToken string) (MatchPage, error)
}

// AuditEvent is one operational record about a match.
type AuditEvent struct {
	ID         int64
	EventName  string
	Severity   string
	MatchID    string
	CaseID     string
	UserID     string
	Attributes map[string]string
	Timestamp  time.Time
}

// AuditEventPage stores one page of audit events.
type AuditEventPage struct {
	Events        []AuditEvent
	NextPageToken string
}

// AuditEventStore appends and lists audit events.
type AuditEventStore interface {
	AppendAuditEvent(ctx context.Context, evt AuditEvent) error
	ListAuditEvents(ctx context.Context, matchID string, pageSize int, pageToken string) (AuditEventPage, error)
}

// Store is the full persistence surface of the court service.
type Store interface {
	CaseStore
	MatchStore
	AuditEventStore
	Close() error
}
