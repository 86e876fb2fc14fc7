package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/platform/timeouts"
	"github.com/louisbranch/courtroom/internal/services/court/api/view"
	"github.com/louisbranch/courtroom/internal/services/court/session"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CaseListInput represents the MCP tool input for listing cases.
type CaseListInput struct {
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum number of cases to return (default 20, max 100)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token of the page to return"`
}

// CaseListResult represents the MCP tool output for listing cases.
type CaseListResult struct {
	Cases         []view.CaseSummary `json:"cases" jsonschema:"playable cases"`
	NextPageToken string             `json:"next_page_token,omitempty" jsonschema:"token of the next page, empty on the last page"`
}

// MatchCreateInput represents the MCP tool input for creating a match.
type MatchCreateInput struct {
	CaseID string `json:"case_id" jsonschema:"case identifier"`
	UserID string `json:"user_id" jsonschema:"player identifier"`
}

// MatchCreateResult represents the MCP tool output for creating a match.
type MatchCreateResult struct {
	MatchID   string `json:"match_id" jsonschema:"match identifier"`
	CaseID    string `json:"case_id" jsonschema:"case identifier"`
	UserID    string `json:"user_id" jsonschema:"player identifier"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp when the match was created"`
}

// MatchListInput represents the MCP tool input for listing a player's matches.
type MatchListInput struct {
	UserID    string `json:"user_id" jsonschema:"player identifier"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum number of matches to return (default 20, max 100)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token of the page to return"`
}

// MatchSummary is one listed match.
type MatchSummary struct {
	MatchID          string `json:"match_id" jsonschema:"match identifier"`
	CaseID           string `json:"case_id" jsonschema:"case identifier"`
	CurrentTurnIndex int    `json:"current_turn_index" jsonschema:"index of the turn being played"`
	Score            int    `json:"score" jsonschema:"running score"`
	Verdict          string `json:"verdict,omitempty" jsonschema:"ruling once decided (granted, partiallyGranted, denied)"`
	Paused           bool   `json:"paused" jsonschema:"whether the match was paused"`
	UpdatedAt        string `json:"updated_at" jsonschema:"RFC3339 timestamp of the last write"`
}

// MatchListResult represents the MCP tool output for listing matches.
type MatchListResult struct {
	Matches       []MatchSummary `json:"matches" jsonschema:"matches of the player"`
	NextPageToken string         `json:"next_page_token,omitempty" jsonschema:"token of the next page, empty on the last page"`
}

// MatchInput names a match.
type MatchInput struct {
	MatchID string `json:"match_id" jsonschema:"match identifier"`
}

// SelectOptionInput represents the MCP tool input for answering a judge question.
type SelectOptionInput struct {
	MatchID     string `json:"match_id" jsonschema:"match identifier"`
	TurnIndex   int    `json:"turn_index" jsonschema:"index of the turn being answered, from awaiting.turn_index"`
	OptionIndex int    `json:"option_index" jsonschema:"index of the chosen response"`
}

// SelectEvidenceInput represents the MCP tool input for presenting evidence.
type SelectEvidenceInput struct {
	MatchID       string `json:"match_id" jsonschema:"match identifier"`
	TurnIndex     int    `json:"turn_index" jsonschema:"index of the turn being answered, from awaiting.turn_index"`
	EvidenceIndex int    `json:"evidence_index" jsonschema:"index of the presented evidence"`
}

// HearingResult carries the state of a hearing.
type HearingResult struct {
	Hearing view.Hearing `json:"hearing" jsonschema:"hearing state"`
}

// MatchPauseResult represents the MCP tool output for pausing a match.
type MatchPauseResult struct {
	MatchID string `json:"match_id" jsonschema:"match identifier"`
	Paused  bool   `json:"paused" jsonschema:"false when this server had no open session for the match"`
}

// CaseListTool defines the MCP tool schema for listing cases.
func CaseListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "case_list",
		Description: "Lists playable courtroom cases.",
	}
}

// MatchCreateTool defines the MCP tool schema for creating a match.
func MatchCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_create",
		Description: "Creates a new match of a case for a player. The match starts empty; call match_start to begin the hearing.",
	}
}

// MatchListTool defines the MCP tool schema for listing a player's matches.
func MatchListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_list",
		Description: "Lists the matches of a player, newest first.",
	}
}

// MatchStartTool defines the MCP tool schema for starting a hearing.
func MatchStartTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_start",
		Description: "Opens a match and starts its hearing, or resumes a paused one. Returns once the judge waits for input or rules.",
	}
}

// MatchSelectOptionTool defines the MCP tool schema for answering a question.
func MatchSelectOptionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_select_option",
		Description: "Answers the awaited judge question with one of its options.",
	}
}

// MatchSelectEvidenceTool defines the MCP tool schema for presenting evidence.
func MatchSelectEvidenceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_select_evidence",
		Description: "Presents one evidence item for the awaited evidence turn.",
	}
}

// MatchStateTool defines the MCP tool schema for reading a hearing.
func MatchStateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_state",
		Description: "Returns the live state of an open hearing, or the stored state of a closed one.",
	}
}

// MatchPauseTool defines the MCP tool schema for pausing a hearing.
func MatchPauseTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_pause",
		Description: "Pauses an open hearing and releases it so another client can resume it.",
	}
}

// MatchRetryFinalSaveTool defines the MCP tool schema for retrying the final write.
func MatchRetryFinalSaveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_retry_final_save",
		Description: "Writes the ruling of a decided hearing again after a failed final save.",
	}
}

// CaseListHandler executes a case list request.
func CaseListHandler(hearings Hearings, localizer view.Localizer) mcp.ToolHandlerFor[CaseListInput, CaseListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CaseListInput) (*mcp.CallToolResult, CaseListResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		page, err := hearings.ListCases(runCtx, pageSize(input.PageSize), input.PageToken)
		if err != nil {
			return nil, CaseListResult{}, toolError(localizer, "case list", err)
		}
		return nil, CaseListResult{Cases: view.CaseSummaries(page.Cases), NextPageToken: page.NextPageToken}, nil
	}
}

// MatchCreateHandler executes a match create request.
func MatchCreateHandler(hearings Hearings, localizer view.Localizer) mcp.ToolHandlerFor[MatchCreateInput, MatchCreateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchCreateInput) (*mcp.CallToolResult, MatchCreateResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		m, err := hearings.CreateMatch(runCtx, input.CaseID, input.UserID)
		if err != nil {
			return nil, MatchCreateResult{}, toolError(localizer, "match create", err)
		}
		return nil, MatchCreateResult{
			MatchID:   m.ID,
			CaseID:    m.CaseID,
			UserID:    m.UserID,
			CreatedAt: formatTimestamp(m.CreatedAt),
		}, nil
	}
}

// MatchListHandler executes a match list request.
func MatchListHandler(hearings Hearings, localizer view.Localizer) mcp.ToolHandlerFor[MatchListInput, MatchListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchListInput) (*mcp.CallToolResult, MatchListResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		page, err := hearings.ListMatches(runCtx, input.UserID, pageSize(input.PageSize), input.PageToken)
		if err != nil {
			return nil, MatchListResult{}, toolError(localizer, "match list", err)
		}
		result := MatchListResult{Matches: make([]MatchSummary, 0, len(page.Matches)), NextPageToken: page.NextPageToken}
		for _, m := range page.Matches {
			summary := MatchSummary{
				MatchID:          m.ID,
				CaseID:           m.CaseID,
				CurrentTurnIndex: m.CurrentTurnIndex,
				Score:            m.Score,
				Paused:           m.PausedAt != nil,
				UpdatedAt:        formatTimestamp(m.UpdatedAt),
			}
			if m.Verdict != nil {
				summary.Verdict = string(*m.Verdict)
			}
			result.Matches = append(result.Matches, summary)
		}
		return nil, result, nil
	}
}

func matchStartHandler(open *sessions, localizer view.Localizer) mcp.ToolHandlerFor[MatchInput, HearingResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchInput) (*mcp.CallToolResult, HearingResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		t, err := open.acquire(runCtx, strings.TrimSpace(input.MatchID))
		if err != nil {
			return nil, HearingResult{}, toolError(localizer, "match start", err)
		}
		if err := t.session.Start(runCtx); err != nil {
			return nil, HearingResult{}, toolError(localizer, "match start", err)
		}
		return nil, HearingResult{Hearing: view.FromSnapshot(t.settle(runCtx), localizer)}, nil
	}
}

func matchSelectOptionHandler(open *sessions, localizer view.Localizer) mcp.ToolHandlerFor[SelectOptionInput, HearingResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SelectOptionInput) (*mcp.CallToolResult, HearingResult, error) {
		return selectWith(ctx, open, localizer, "match select option", input.MatchID, func(runCtx context.Context, s *session.Session) error {
			return s.SelectOption(runCtx, input.TurnIndex, input.OptionIndex)
		})
	}
}

func matchSelectEvidenceHandler(open *sessions, localizer view.Localizer) mcp.ToolHandlerFor[SelectEvidenceInput, HearingResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SelectEvidenceInput) (*mcp.CallToolResult, HearingResult, error) {
		return selectWith(ctx, open, localizer, "match select evidence", input.MatchID, func(runCtx context.Context, s *session.Session) error {
			return s.SelectEvidence(runCtx, input.TurnIndex, input.EvidenceIndex)
		})
	}
}

// selectWith opens the match if needed, lets a resumed hearing reach its
// prompt, applies the selection and waits for the hearing to settle again.
func selectWith(ctx context.Context, open *sessions, localizer view.Localizer, action, matchID string, apply func(context.Context, *session.Session) error) (*mcp.CallToolResult, HearingResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
	defer cancel()

	t, err := open.acquire(runCtx, strings.TrimSpace(matchID))
	if err != nil {
		return nil, HearingResult{}, toolError(localizer, action, err)
	}
	t.settle(runCtx)
	if err := apply(runCtx, t.session); err != nil {
		return nil, HearingResult{}, toolError(localizer, action, err)
	}
	return nil, HearingResult{Hearing: view.FromSnapshot(t.settle(runCtx), localizer)}, nil
}

func matchStateHandler(hearings Hearings, localizer view.Localizer) mcp.ToolHandlerFor[MatchInput, HearingResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchInput) (*mcp.CallToolResult, HearingResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		matchID := strings.TrimSpace(input.MatchID)
		if s, ok := hearings.Active(matchID); ok {
			return nil, HearingResult{Hearing: view.FromSnapshot(s.Snapshot(), localizer)}, nil
		}
		m, err := hearings.Match(runCtx, matchID)
		if err != nil {
			return nil, HearingResult{}, toolError(localizer, "match state", err)
		}
		c, err := hearings.Case(runCtx, m.CaseID)
		if err != nil {
			return nil, HearingResult{}, toolError(localizer, "match state", err)
		}
		return nil, HearingResult{Hearing: view.FromMatch(m, c)}, nil
	}
}

func matchPauseHandler(open *sessions, localizer view.Localizer) mcp.ToolHandlerFor[MatchInput, MatchPauseResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchInput) (*mcp.CallToolResult, MatchPauseResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		matchID := strings.TrimSpace(input.MatchID)
		paused, err := open.release(runCtx, matchID)
		if err != nil {
			return nil, MatchPauseResult{}, toolError(localizer, "match pause", err)
		}
		return nil, MatchPauseResult{MatchID: matchID, Paused: paused}, nil
	}
}

func matchRetryFinalSaveHandler(open *sessions, localizer view.Localizer) mcp.ToolHandlerFor[MatchInput, HearingResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchInput) (*mcp.CallToolResult, HearingResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		t, err := open.acquire(runCtx, strings.TrimSpace(input.MatchID))
		if err != nil {
			return nil, HearingResult{}, toolError(localizer, "match retry final save", err)
		}
		if err := t.session.RetryFinalSave(runCtx); err != nil {
			return nil, HearingResult{}, toolError(localizer, "match retry final save", err)
		}
		return nil, HearingResult{Hearing: view.FromSnapshot(t.session.Snapshot(), localizer)}, nil
	}
}

// toolError renders err with its code and localized message so agents can
// branch on the code.
func toolError(localizer view.Localizer, action string, err error) error {
	rendered := localizer.Error(err)
	if rendered.Retryable {
		return fmt.Errorf("%s failed: %s (retryable): %s", action, rendered.Code, rendered.Message)
	}
	if rendered.Code == string(apperrors.CodeUnknown) {
		return fmt.Errorf("%s failed: %w", action, err)
	}
	return fmt.Errorf("%s failed: %s: %s", action, rendered.Code, rendered.Message)
}

func pageSize(requested int) int {
	if requested <= 0 {
		return defaultPageSize
	}
	if requested > maxPageSize {
		return maxPageSize
	}
	return requested
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
