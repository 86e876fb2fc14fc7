// Package bbolt provides a BoltDB-backed court store.
package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

const (
	caseBucket  = "cases"
	matchBucket = "matches"
	auditBucket = "audit_events"
)

// Store provides a BoltDB-backed case, match and audit store.
type Store struct {
	db    *bbolt.DB
	clock func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, clock: time.Now}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutCase persists a case. Existing ids are rejected.
func (s *Store) PutCase(ctx context.Context, c casefile.Case) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return fmt.Errorf("case id is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.MaxScore = c.EffectiveMaxScore()

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, caseBucket)
		if err != nil {
			return err
		}
		if bucket.Get([]byte(c.ID)) != nil {
			return storage.ErrAlreadyExists
		}
		return bucket.Put([]byte(c.ID), payload)
	})
}

// GetCase fetches a case by id.
func (s *Store) GetCase(ctx context.Context, id string) (casefile.Case, error) {
	if err := s.ready(ctx); err != nil {
		return casefile.Case{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return casefile.Case{}, fmt.Errorf("case id is required")
	}

	var c casefile.Case
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, caseBucket)
		if err != nil {
			return err
		}
		payload := bucket.Get([]byte(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &c); err != nil {
			return fmt.Errorf("unmarshal case: %w", err)
		}
		return nil
	})
	if err != nil {
		return casefile.Case{}, err
	}
	return c, nil
}

// ListCases returns one page of case summaries ordered by id.
func (s *Store) ListCases(ctx context.Context, pageSize int, pageToken string) (storage.CasePage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.CasePage{}, err
	}
	if pageSize <= 0 {
		return storage.CasePage{}, fmt.Errorf("page size must be greater than zero")
	}

	page := storage.CasePage{Cases: make([]casefile.Summary, 0, pageSize)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, caseBucket)
		if err != nil {
			return err
		}
		cursor := bucket.Cursor()
		for key, payload := seekAfter(cursor, []byte(strings.TrimSpace(pageToken))); key != nil; key, payload = cursor.Next() {
			if len(page.Cases) == pageSize {
				page.NextPageToken = page.Cases[pageSize-1].ID
				return nil
			}
			var c casefile.Case
			if err := json.Unmarshal(payload, &c); err != nil {
				return fmt.Errorf("unmarshal case %s: %w", key, err)
			}
			page.Cases = append(page.Cases, c.Summarize())
		}
		return nil
	})
	if err != nil {
		return storage.CasePage{}, err
	}
	return page, nil
}

// CreateMatch persists a new match. The referenced case must exist.
func (s *Store) CreateMatch(ctx context.Context, m match.Match) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if strings.TrimSpace(m.CaseID) == "" {
		return fmt.Errorf("case id is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		cases, err := bucketOf(tx, caseBucket)
		if err != nil {
			return err
		}
		if cases.Get([]byte(m.CaseID)) == nil {
			return fmt.Errorf("case %s does not exist", m.CaseID)
		}
		matches, err := bucketOf(tx, matchBucket)
		if err != nil {
			return err
		}
		if matches.Get([]byte(m.ID)) != nil {
			return storage.ErrAlreadyExists
		}
		return putMatch(matches, m)
	})
}

// GetMatch fetches a match by id.
func (s *Store) GetMatch(ctx context.Context, id string) (match.Match, error) {
	if err := s.ready(ctx); err != nil {
		return match.Match{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return match.Match{}, fmt.Errorf("match id is required")
	}

	var m match.Match
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, matchBucket)
		if err != nil {
			return err
		}
		m, err = getMatch(bucket, id)
		return err
	})
	if err != nil {
		return match.Match{}, err
	}
	return m, nil
}

// SaveMatchProgress overwrites the log, score, choices, index and streaks.
func (s *Store) SaveMatchProgress(ctx context.Context, id string, p match.Progress) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.updateMatch(id, func(m *match.Match) error {
		m.ApplyProgress(p, s.now())
		return nil
	})
}

// SaveMatchResult records the ruling and feedback.
func (s *Store) SaveMatchResult(ctx context.Context, id string, r match.Result) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !r.Verdict.Valid() {
		return fmt.Errorf("verdict %q is invalid", r.Verdict)
	}
	return s.updateMatch(id, func(m *match.Match) error {
		m.ApplyResult(r, s.now())
		return nil
	})
}

// ListMatchesByUser returns one page of a user's matches ordered by id.
func (s *Store) ListMatchesByUser(ctx context.Context, userID string, pageSize int, pageToken string) (storage.MatchPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MatchPage{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.MatchPage{}, fmt.Errorf("user id is required")
	}
	if pageSize <= 0 {
		return storage.MatchPage{}, fmt.Errorf("page size must be greater than zero")
	}

	page := storage.MatchPage{Matches: make([]match.Match, 0, pageSize)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, matchBucket)
		if err != nil {
			return err
		}
		cursor := bucket.Cursor()
		for key, payload := seekAfter(cursor, []byte(strings.TrimSpace(pageToken))); key != nil; key, payload = cursor.Next() {
			var m match.Match
			if err := json.Unmarshal(payload, &m); err != nil {
				return fmt.Errorf("unmarshal match %s: %w", key, err)
			}
			if m.UserID != userID {
				continue
			}
			if len(page.Matches) == pageSize {
				page.NextPageToken = page.Matches[pageSize-1].ID
				return nil
			}
			page.Matches = append(page.Matches, m)
		}
		return nil
	})
	if err != nil {
		return storage.MatchPage{}, err
	}
	return page, nil
}

// AppendAuditEvent records one audit event under its match.
func (s *Store) AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if strings.TrimSpace(evt.Severity) == "" {
		return fmt.Errorf("severity is required")
	}
	if evt.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, auditBucket)
		if err != nil {
			return err
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next audit sequence: %w", err)
		}
		evt.ID = int64(seq)
		evt.Timestamp = evt.Timestamp.UTC()
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal audit event: %w", err)
		}
		return bucket.Put(auditKey(strings.TrimSpace(evt.MatchID), seq), payload)
	})
}

// ListAuditEvents returns a page of audit events for one match, oldest first.
func (s *Store) ListAuditEvents(ctx context.Context, matchID string, pageSize int, pageToken string) (storage.AuditEventPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AuditEventPage{}, err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return storage.AuditEventPage{}, fmt.Errorf("match id is required")
	}
	if pageSize <= 0 {
		return storage.AuditEventPage{}, fmt.Errorf("page size must be greater than zero")
	}
	var after uint64
	if token := strings.TrimSpace(pageToken); token != "" {
		value, err := strconv.ParseUint(token, 10, 64)
		if err != nil {
			return storage.AuditEventPage{}, fmt.Errorf("invalid page token")
		}
		after = value
	}

	page := storage.AuditEventPage{Events: make([]storage.AuditEvent, 0, pageSize)}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, auditBucket)
		if err != nil {
			return err
		}
		prefix := auditPrefix(matchID)
		cursor := bucket.Cursor()
		for key, payload := cursor.Seek(auditKey(matchID, after+1)); key != nil && bytes.HasPrefix(key, prefix); key, payload = cursor.Next() {
			if len(page.Events) == pageSize {
				page.NextPageToken = strconv.FormatInt(page.Events[pageSize-1].ID, 10)
				return nil
			}
			var evt storage.AuditEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				return fmt.Errorf("unmarshal audit event: %w", err)
			}
			page.Events = append(page.Events, evt)
		}
		return nil
	})
	if err != nil {
		return storage.AuditEventPage{}, err
	}
	return page, nil
}

func (s *Store) updateMatch(id string, apply func(*match.Match) error) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("match id is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := bucketOf(tx, matchBucket)
		if err != nil {
			return err
		}
		m, err := getMatch(bucket, id)
		if err != nil {
			return err
		}
		if err := apply(&m); err != nil {
			return err
		}
		return putMatch(bucket, m)
	})
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{caseBucket, matchBucket, auditBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func bucketOf(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	bucket := tx.Bucket([]byte(name))
	if bucket == nil {
		return nil, fmt.Errorf("%s bucket is missing", name)
	}
	return bucket, nil
}

func getMatch(bucket *bbolt.Bucket, id string) (match.Match, error) {
	payload := bucket.Get([]byte(id))
	if payload == nil {
		return match.Match{}, storage.ErrNotFound
	}
	var m match.Match
	if err := json.Unmarshal(payload, &m); err != nil {
		return match.Match{}, fmt.Errorf("unmarshal match: %w", err)
	}
	return m, nil
}

func putMatch(bucket *bbolt.Bucket, m match.Match) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	return bucket.Put([]byte(m.ID), payload)
}

// seekAfter positions cursor on the first key strictly greater than token.
func seekAfter(cursor *bbolt.Cursor, token []byte) ([]byte, []byte) {
	if len(token) == 0 {
		return cursor.First()
	}
	key, value := cursor.Seek(token)
	if key != nil && bytes.Equal(key, token) {
		return cursor.Next()
	}
	return key, value
}

func auditPrefix(matchID string) []byte {
	return []byte(matchID + "/")
}

// auditKey orders events per match by their big-endian sequence.
func auditKey(matchID string, seq uint64) []byte {
	key := auditPrefix(matchID)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}
