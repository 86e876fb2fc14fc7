package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

// AppendAuditEvent records one audit event.
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
	attributes := evt.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}
	attributesJSON, err := json.Marshal(attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_events (
	event_name, severity, match_id, case_id, user_id, attributes_json, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		strings.TrimSpace(evt.EventName),
		strings.TrimSpace(evt.Severity),
		strings.TrimSpace(evt.MatchID),
		strings.TrimSpace(evt.CaseID),
		strings.TrimSpace(evt.UserID),
		string(attributesJSON),
		toMillis(evt.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
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
	var after int64
	if token := strings.TrimSpace(pageToken); token != "" {
		value, err := strconv.ParseInt(token, 10, 64)
		if err != nil || value < 0 {
			return storage.AuditEventPage{}, fmt.Errorf("invalid page token")
		}
		after = value
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, event_name, severity, match_id, case_id, user_id, attributes_json, created_at
  FROM audit_events
 WHERE match_id = ? AND id > ?
 ORDER BY id ASC
 LIMIT ?
`, matchID, after, pageSize+1)
	if err != nil {
		return storage.AuditEventPage{}, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	page := storage.AuditEventPage{Events: make([]storage.AuditEvent, 0, pageSize)}
	for rows.Next() {
		var (
			evt            storage.AuditEvent
			attributesJSON string
			createdAt      int64
		)
		if err := rows.Scan(&evt.ID, &evt.EventName, &evt.Severity, &evt.MatchID, &evt.CaseID, &evt.UserID, &attributesJSON, &createdAt); err != nil {
			return storage.AuditEventPage{}, fmt.Errorf("list audit events: %w", err)
		}
		if err := json.Unmarshal([]byte(attributesJSON), &evt.Attributes); err != nil {
			return storage.AuditEventPage{}, fmt.Errorf("decode attributes: %w", err)
		}
		evt.Timestamp = fromMillis(createdAt)
		page.Events = append(page.Events, evt)
	}
	if err := rows.Err(); err != nil {
		return storage.AuditEventPage{}, fmt.Errorf("list audit events: %w", err)
	}
	if len(page.Events) > pageSize {
		page.NextPageToken = strconv.FormatInt(page.Events[pageSize-1].ID, 10)
		page.Events = page.Events[:pageSize]
	}
	return page, nil
}
