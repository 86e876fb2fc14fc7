package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
	"golang.org/x/text/language"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/platform/i18n/catalog"
	"github.com/louisbranch/courtroom/internal/services/court/api/view"
	"github.com/louisbranch/courtroom/internal/services/court/engine"
	"github.com/louisbranch/courtroom/internal/services/court/session"
)

// Config wires the WebSocket handler.
type Config struct {
	Orchestrator  *session.Orchestrator
	Catalog       *catalog.Bundle
	DefaultLocale string
}

// NewHandler creates the court HTTP routes: /up for liveness and /ws for
// hearings.
func NewHandler(cfg Config) http.Handler {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		locale := cfg.DefaultLocale
		if request := conn.Request(); request != nil {
			locale = requestLocale(request, cfg.DefaultLocale)
		}
		handleWSConn(conn, cfg.Orchestrator, view.NewLocalizer(cfg.Catalog, locale))
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if cfg.Orchestrator == nil {
			http.Error(w, "hearings are not configured", http.StatusServiceUnavailable)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

// requestLocale prefers the locale query parameter, then the first
// Accept-Language tag.
func requestLocale(r *http.Request, fallback string) string {
	if locale := strings.TrimSpace(r.URL.Query().Get("locale")); locale != "" {
		return locale
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return fallback
	}
	return tags[0].String()
}

// wsConn is the state of one WebSocket client.
type wsConn struct {
	orch      *session.Orchestrator
	localizer view.Localizer
	peer      *wsPeer

	mu      sync.Mutex
	session *session.Session
}

func handleWSConn(conn *websocket.Conn, orch *session.Orchestrator, localizer view.Localizer) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	c := &wsConn{orch: orch, localizer: localizer, peer: newWSPeer(json.NewEncoder(conn))}
	defer c.leave()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			c.writeError("", apperrors.New(apperrors.CodeInvalidArgument, "invalid frame payload"))
			if decodeErrors >= maxDecodeErrors {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			c.writeError(frame.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "payload too large"))
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			c.writeError(frame.RequestID, apperrors.New(apperrors.CodeInvalidArgument, "rate limit exceeded"))
			return
		}

		ctx := context.Background()
		if request := conn.Request(); request != nil {
			ctx = request.Context()
		}
		c.handle(ctx, frame)
	}
}

func (c *wsConn) handle(ctx context.Context, frame wsFrame) {
	var err error
	switch frame.Type {
	case frameCaseList:
		err = c.handleCaseList(ctx, frame)
	case frameMatchCreate:
		err = c.handleMatchCreate(ctx, frame)
	case frameMatchOpen:
		err = c.handleMatchOpen(ctx, frame)
	case frameMatchStart:
		err = c.withSession(frame, func(s *session.Session) error { return s.Start(ctx) })
	case frameSelectOption:
		var payload selectOptionPayload
		if err = decodePayload(frame, &payload); err == nil {
			err = c.withSession(frame, func(s *session.Session) error {
				return s.SelectOption(ctx, payload.TurnIndex, payload.OptionIndex)
			})
		}
	case frameSelectEvidence:
		var payload selectEvidencePayload
		if err = decodePayload(frame, &payload); err == nil {
			err = c.withSession(frame, func(s *session.Session) error {
				return s.SelectEvidence(ctx, payload.TurnIndex, payload.EvidenceIndex)
			})
		}
	case frameMatchPause:
		err = c.withSession(frame, func(s *session.Session) error {
			c.detach(s)
			return s.Pause(ctx)
		})
	case frameRetryFinalSave:
		err = c.withSession(frame, func(s *session.Session) error { return s.RetryFinalSave(ctx) })
	default:
		err = apperrors.New(apperrors.CodeInvalidArgument, "unsupported frame type")
	}
	if err != nil {
		c.writeError(frame.RequestID, err)
	}
}

func (c *wsConn) handleCaseList(ctx context.Context, frame wsFrame) error {
	var payload caseListPayload
	if err := decodePayload(frame, &payload); err != nil {
		return err
	}
	if payload.PageSize <= 0 {
		payload.PageSize = defaultCasePageSize
	}
	if payload.PageSize > maxCasePageSize {
		payload.PageSize = maxCasePageSize
	}
	page, err := c.orch.ListCases(ctx, payload.PageSize, payload.PageToken)
	if err != nil {
		return err
	}
	return c.peer.writeFrame(wsFrame{
		Type:      frameCasePage,
		RequestID: frame.RequestID,
		Payload:   mustJSON(casePagePayload{Cases: view.CaseSummaries(page.Cases), NextPageToken: page.NextPageToken}),
	})
}

func (c *wsConn) handleMatchCreate(ctx context.Context, frame wsFrame) error {
	var payload matchCreatePayload
	if err := decodePayload(frame, &payload); err != nil {
		return err
	}
	m, err := c.orch.CreateMatch(ctx, payload.CaseID, payload.UserID)
	if err != nil {
		return err
	}
	return c.peer.writeFrame(wsFrame{
		Type:      frameMatchCreated,
		RequestID: frame.RequestID,
		Payload:   mustJSON(matchCreatedPayload{MatchID: m.ID, CaseID: m.CaseID, UserID: m.UserID}),
	})
}

func (c *wsConn) handleMatchOpen(ctx context.Context, frame wsFrame) error {
	var payload matchOpenPayload
	if err := decodePayload(frame, &payload); err != nil {
		return err
	}
	matchID := strings.TrimSpace(payload.MatchID)
	if matchID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "match_id is required")
	}
	c.leave()

	s, err := c.orch.Open(ctx, matchID, session.OpenOptions{
		Observer: c.pushState,
		OnPersistError: func(kind session.WriteKind, err error) {
			if kind == session.WriteProgress {
				c.writeError("", err)
			}
		},
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	return c.peer.writeFrame(wsFrame{
		Type:      frameMatchOpened,
		RequestID: frame.RequestID,
		Payload:   mustJSON(matchOpenedPayload{MatchID: matchID, State: string(s.Snapshot().State)}),
	})
}

func (c *wsConn) withSession(frame wsFrame, apply func(*session.Session) error) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "open a match before playing")
	}
	if err := apply(s); err != nil {
		return err
	}
	return c.peer.writeFrame(wsFrame{
		Type:      frameAck,
		RequestID: frame.RequestID,
		Payload:   mustJSON(ackEnvelope{Result: ackResult{Status: "ok"}}),
	})
}

func (c *wsConn) pushState(snapshot engine.Snapshot) {
	_ = c.peer.writeFrame(wsFrame{
		Type:    frameMatchState,
		Payload: mustJSON(statePayload{Hearing: view.FromSnapshot(snapshot, c.localizer)}),
	})
}

// detach forgets s if it is the current session.
func (c *wsConn) detach(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.session = nil
	}
}

// leave pauses the current session, if any.
func (c *wsConn) leave() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.Pause(context.Background()); err != nil {
		log.Printf("court ws: pause match %s: %v", s.MatchID(), err)
	}
}

func (c *wsConn) writeError(requestID string, err error) {
	_ = c.peer.writeFrame(wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Payload:   mustJSON(errorEnvelope{Error: c.localizer.Error(err)}),
	})
}

func decodePayload(frame wsFrame, target any) error {
	if len(frame.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(frame.Payload, target); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid "+frame.Type+" payload", err)
	}
	return nil
}
