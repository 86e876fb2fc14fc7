package audit

import (
	"context"
	"time"

	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

// Severity describes the audit severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Appender is the write side of an audit event store.
type Appender interface {
	AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error
}

// Emitter records operational audit events.
type Emitter struct {
	store Appender
	clock func() time.Time
}

// NewEmitter creates a new audit event emitter.
func NewEmitter(store Appender) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records an audit event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.AuditEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	if evt.Severity == "" {
		evt.Severity = string(SeverityInfo)
	}
	return e.store.AppendAuditEvent(ctx, evt)
}

// Subject identifies the match an event is about.
type Subject struct {
	MatchID string
	CaseID  string
	UserID  string
}

// EmitFor records name for subject with the given severity and attributes.
func (e *Emitter) EmitFor(ctx context.Context, subject Subject, name string, severity Severity, attributes map[string]string) error {
	return e.Emit(ctx, storage.AuditEvent{
		EventName:  name,
		Severity:   string(severity),
		MatchID:    subject.MatchID,
		CaseID:     subject.CaseID,
		UserID:     subject.UserID,
		Attributes: attributes,
	})
}
