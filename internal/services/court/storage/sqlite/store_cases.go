package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

const caseColumns = `id, area, theme, title, initial_context, judge_name, judge_style,
	        opponent_name, opponent_type, player_gender, turns_json,
	        expected_verdict_text, max_score, positive_feedback_json,
	        negative_feedback_json, tips_json, locale, created_at`

// PutCase inserts one case.
func (s *Store) PutCase(ctx context.Context, c casefile.Case) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(c.ID)
	if id == "" {
		return fmt.Errorf("case id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("case title is required")
	}
	turnsJSON, err := casefile.EncodeTurns(c.Turns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	positive, err := marshalJSON(nonNil(c.PositiveFeedback))
	if err != nil {
		return fmt.Errorf("encode positive feedback: %w", err)
	}
	negative, err := marshalJSON(nonNil(c.NegativeFeedback))
	if err != nil {
		return fmt.Errorf("encode negative feedback: %w", err)
	}
	tips, err := marshalJSON(nonNil(c.Tips))
	if err != nil {
		return fmt.Errorf("encode tips: %w", err)
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO cases (`+caseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		c.Area,
		c.Theme,
		c.Title,
		c.InitialContext,
		c.JudgeName,
		c.JudgeStyle,
		c.OpponentName,
		string(c.OpponentType),
		string(c.PlayerGender),
		string(turnsJSON),
		c.ExpectedVerdictText,
		c.EffectiveMaxScore(),
		positive,
		negative,
		tips,
		c.Locale,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err, "cases.id") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put case: %w", err)
	}
	return nil
}

// GetCase returns one case by id.
func (s *Store) GetCase(ctx context.Context, id string) (casefile.Case, error) {
	if err := s.ready(ctx); err != nil {
		return casefile.Case{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return casefile.Case{}, fmt.Errorf("case id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return casefile.Case{}, storage.ErrNotFound
		}
		return casefile.Case{}, fmt.Errorf("get case: %w", err)
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
	pageToken = strings.TrimSpace(pageToken)

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+caseColumns+`
		   FROM cases
		  WHERE id > ?
		  ORDER BY id ASC
		  LIMIT ?`,
		pageToken,
		pageSize+1,
	)
	if err != nil {
		return storage.CasePage{}, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	page := storage.CasePage{Cases: make([]casefile.Summary, 0, pageSize)}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return storage.CasePage{}, fmt.Errorf("list cases: %w", err)
		}
		page.Cases = append(page.Cases, c.Summarize())
	}
	if err := rows.Err(); err != nil {
		return storage.CasePage{}, fmt.Errorf("list cases: %w", err)
	}
	if len(page.Cases) > pageSize {
		page.NextPageToken = page.Cases[pageSize-1].ID
		page.Cases = page.Cases[:pageSize]
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (casefile.Case, error) {
	var (
		c            casefile.Case
		opponentType string
		playerGender string
		turnsJSON    string
		positiveJSON string
		negativeJSON string
		tipsJSON     string
		createdAt    int64
	)
	if err := row.Scan(
		&c.ID,
		&c.Area,
		&c.Theme,
		&c.Title,
		&c.InitialContext,
		&c.JudgeName,
		&c.JudgeStyle,
		&c.OpponentName,
		&opponentType,
		&playerGender,
		&turnsJSON,
		&c.ExpectedVerdictText,
		&c.MaxScore,
		&positiveJSON,
		&negativeJSON,
		&tipsJSON,
		&c.Locale,
		&createdAt,
	); err != nil {
		return casefile.Case{}, err
	}
	turns, err := casefile.DecodeTurns([]byte(turnsJSON))
	if err != nil {
		return casefile.Case{}, err
	}
	c.Turns = turns
	if c.PositiveFeedback, err = unmarshalStrings(positiveJSON); err != nil {
		return casefile.Case{}, fmt.Errorf("decode positive feedback: %w", err)
	}
	if c.NegativeFeedback, err = unmarshalStrings(negativeJSON); err != nil {
		return casefile.Case{}, fmt.Errorf("decode negative feedback: %w", err)
	}
	if c.Tips, err = unmarshalStrings(tipsJSON); err != nil {
		return casefile.Case{}, fmt.Errorf("decode tips: %w", err)
	}
	c.OpponentType = casefile.OpponentType(opponentType)
	c.PlayerGender = casefile.Gender(playerGender)
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
