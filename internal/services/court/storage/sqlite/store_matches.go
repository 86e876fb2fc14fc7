package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/domain/verdict"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

const matchColumns = `id, case_id, user_id, current_turn_index, score, messages_json,
	        choices_json, verdict, final_sentence_text, combo_current, combo_max,
	        paused_at, positive_feedback_json, negative_feedback_json, tips_json,
	        created_at, updated_at`

// CreateMatch inserts a new match.
func (s *Store) CreateMatch(ctx context.Context, m match.Match) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return fmt.Errorf("match id is required")
	}
	if strings.TrimSpace(m.CaseID) == "" {
		return fmt.Errorf("case id is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	messages, err := marshalJSON(nonNil(m.Messages))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	choices, err := marshalJSON(nonNil(m.Choices))
	if err != nil {
		return fmt.Errorf("encode choices: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO matches (
		   id, case_id, user_id, current_turn_index, score, messages_json,
		   choices_json, combo_current, combo_max, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		m.CaseID,
		m.UserID,
		m.CurrentTurnIndex,
		m.Score,
		messages,
		choices,
		m.ComboCurrent,
		m.ComboMax,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "matches.id") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// GetMatch returns one match by id.
func (s *Store) GetMatch(ctx context.Context, id string) (match.Match, error) {
	if err := s.ready(ctx); err != nil {
		return match.Match{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return match.Match{}, fmt.Errorf("match id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return match.Match{}, storage.ErrNotFound
		}
		return match.Match{}, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// SaveMatchProgress overwrites the log, score, choices, index and streaks.
func (s *Store) SaveMatchProgress(ctx context.Context, id string, p match.Progress) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	messages, err := marshalJSON(nonNil(p.Messages))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	choices, err := marshalJSON(nonNil(p.Choices))
	if err != nil {
		return fmt.Errorf("encode choices: %w", err)
	}
	var pausedAt sql.NullInt64
	if p.PausedAt != nil {
		pausedAt = sql.NullInt64{Int64: toMillis(*p.PausedAt), Valid: true}
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE matches
		    SET messages_json = ?, score = ?, choices_json = ?, current_turn_index = ?,
		        combo_current = ?, combo_max = ?, paused_at = ?, updated_at = ?
		  WHERE id = ?`,
		messages,
		p.Score,
		choices,
		p.CurrentTurnIndex,
		p.ComboCurrent,
		p.ComboMax,
		pausedAt,
		toMillis(s.now()),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("save match progress: %w", err)
	}
	return requireRow(result)
}

// SaveMatchResult records the ruling and feedback.
func (s *Store) SaveMatchResult(ctx context.Context, id string, r match.Result) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !r.Verdict.Valid() {
		return fmt.Errorf("verdict %q is invalid", r.Verdict)
	}
	positive, err := marshalJSON(nonNil(r.PositiveFeedback))
	if err != nil {
		return fmt.Errorf("encode positive feedback: %w", err)
	}
	negative, err := marshalJSON(nonNil(r.NegativeFeedback))
	if err != nil {
		return fmt.Errorf("encode negative feedback: %w", err)
	}
	tips, err := marshalJSON(nonNil(r.Tips))
	if err != nil {
		return fmt.Errorf("encode tips: %w", err)
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE matches
		    SET score = ?, verdict = ?, final_sentence_text = ?, positive_feedback_json = ?,
		        negative_feedback_json = ?, tips_json = ?, updated_at = ?
		  WHERE id = ?`,
		r.Score,
		string(r.Verdict),
		r.FinalSentenceText,
		positive,
		negative,
		tips,
		toMillis(s.now()),
		strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("save match result: %w", err)
	}
	return requireRow(result)
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

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+matchColumns+`
		   FROM matches
		  WHERE user_id = ? AND id > ?
		  ORDER BY id ASC
		  LIMIT ?`,
		userID,
		strings.TrimSpace(pageToken),
		pageSize+1,
	)
	if err != nil {
		return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	page := storage.MatchPage{Matches: make([]match.Match, 0, pageSize)}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
		}
		page.Matches = append(page.Matches, m)
	}
	if err := rows.Err(); err != nil {
		return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
	}
	if len(page.Matches) > pageSize {
		page.NextPageToken = page.Matches[pageSize-1].ID
		page.Matches = page.Matches[:pageSize]
	}
	return page, nil
}

func scanMatch(row rowScanner) (match.Match, error) {
	var (
		m            match.Match
		messagesJSON string
		choicesJSON  string
		verdictValue sql.NullString
		sentence     sql.NullString
		pausedAt     sql.NullInt64
		positiveJSON string
		negativeJSON string
		tipsJSON     string
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(
		&m.ID,
		&m.CaseID,
		&m.UserID,
		&m.CurrentTurnIndex,
		&m.Score,
		&messagesJSON,
		&choicesJSON,
		&verdictValue,
		&sentence,
		&m.ComboCurrent,
		&m.ComboMax,
		&pausedAt,
		&positiveJSON,
		&negativeJSON,
		&tipsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return match.Match{}, err
	}
	if err := unmarshalList(messagesJSON, &m.Messages); err != nil {
		return match.Match{}, fmt.Errorf("decode messages: %w", err)
	}
	if err := unmarshalList(choicesJSON, &m.Choices); err != nil {
		return match.Match{}, fmt.Errorf("decode choices: %w", err)
	}
	if verdictValue.Valid {
		v := verdict.Verdict(verdictValue.String)
		m.Verdict = &v
	}
	if sentence.Valid {
		text := sentence.String
		m.FinalSentenceText = &text
	}
	if pausedAt.Valid {
		at := fromMillis(pausedAt.Int64)
		m.PausedAt = &at
	}
	var err error
	if m.PositiveFeedback, err = unmarshalStrings(positiveJSON); err != nil {
		return match.Match{}, fmt.Errorf("decode positive feedback: %w", err)
	}
	if m.NegativeFeedback, err = unmarshalStrings(negativeJSON); err != nil {
		return match.Match{}, fmt.Errorf("decode negative feedback: %w", err)
	}
	if m.Tips, err = unmarshalStrings(tipsJSON); err != nil {
		return match.Match{}, fmt.Errorf("decode tips: %w", err)
	}
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}

func unmarshalList[T any](raw string, target *[]T) error {
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return err
	}
	if len(out) > 0 {
		*target = out
	}
	return nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
