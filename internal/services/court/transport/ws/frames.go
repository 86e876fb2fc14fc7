package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/louisbranch/courtroom/internal/services/court/api/view"
)

const (
	frameCaseList        = "case.list"
	frameCasePage        = "case.page"
	frameMatchCreate     = "match.create"
	frameMatchCreated    = "match.created"
	frameMatchOpen       = "match.open"
	frameMatchOpened     = "match.opened"
	frameMatchStart      = "match.start"
	frameSelectOption    = "match.select_option"
	frameSelectEvidence  = "match.select_evidence"
	frameMatchPause      = "match.pause"
	frameRetryFinalSave  = "match.retry_final_save"
	frameMatchState      = "match.state"
	frameAck             = "court.ack"
	frameError           = "court.error"
	defaultCasePageSize  = 20
	maxCasePageSize      = 100
	maxFramePayloadBytes = 16 * 1024
	maxFramesPerSecond   = 40
	maxDecodeErrors      = 3
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type errorEnvelope struct {
	Error *view.Error `json:"error"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status string `json:"status"`
}

type caseListPayload struct {
	PageSize  int    `json:"page_size"`
	PageToken string `json:"page_token"`
}

type casePagePayload struct {
	Cases         []view.CaseSummary `json:"cases"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

type matchCreatePayload struct {
	CaseID string `json:"case_id"`
	UserID string `json:"user_id"`
}

type matchCreatedPayload struct {
	MatchID string `json:"match_id"`
	CaseID  string `json:"case_id"`
	UserID  string `json:"user_id"`
}

type matchOpenPayload struct {
	MatchID string `json:"match_id"`
}

type matchOpenedPayload struct {
	MatchID string `json:"match_id"`
	State   string `json:"state"`
}

type selectOptionPayload struct {
	TurnIndex   int `json:"turn_index"`
	OptionIndex int `json:"option_index"`
}

type selectEvidencePayload struct {
	TurnIndex     int `json:"turn_index"`
	EvidenceIndex int `json:"evidence_index"`
}

type statePayload struct {
	Hearing view.Hearing `json:"hearing"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("court ws: failed to marshal frame payload: %v", err)
		return nil
	}
	return b
}
