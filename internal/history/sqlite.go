package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/icymirror/larkgpt/internal/domain"
	"github.com/icymirror/larkgpt/internal/store"
)

// SQLiteStore implements Store backed by the shared SQLite database.
type SQLiteStore struct {
	db *store.DB
}

// NewSQLiteStore creates a history store using the given database.
func NewSQLiteStore(db *store.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// AppendTurn persists a turn and returns its id.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn domain.Turn) (string, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var fnName, fnArgs sql.NullString
	if turn.FunctionCall != nil {
		fnName = sql.NullString{String: turn.FunctionCall.Name, Valid: true}
		fnArgs = sql.NullString{String: turn.FunctionCall.Arguments, Valid: true}
	}

	_, err := s.db.SQL().ExecContext(ctx,
		`INSERT INTO chat_turns (id, user, sent, answer, function_name, function_args, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.User, turn.Sent, nullable(turn.Answer), fnName, fnArgs,
		turn.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting turn: %w", err)
	}
	return turn.ID, nil
}

// RecentTurns returns up to limit most recent turns for the user, oldest-first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, user string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		limit = DefaultWindow
	}

	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT id, user, sent, answer, function_name, function_args, created_at
		 FROM chat_turns WHERE user = ?
		 ORDER BY created_at DESC LIMIT ?`, user, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var answer, fnName, fnArgs sql.NullString
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.User, &t.Sent, &answer, &fnName, &fnArgs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Answer = answer.String
		if fnName.Valid {
			t.FunctionCall = &domain.FunctionCall{Name: fnName.String, Arguments: fnArgs.String}
		}
		t.CreatedAt = time.UnixMilli(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	// Query returned newest-first; callers want oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Clear removes all turns for the user.
func (s *SQLiteStore) Clear(ctx context.Context, user string) error {
	_, err := s.db.SQL().ExecContext(ctx, `DELETE FROM chat_turns WHERE user = ?`, user)
	if err != nil {
		return fmt.Errorf("clearing turns: %w", err)
	}
	return nil
}

// AppendSearchResult persists a search result and returns its id.
func (s *SQLiteStore) AppendSearchResult(ctx context.Context, result domain.SearchResult) (string, error) {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}

	items, err := json.Marshal(result.Items)
	if err != nil {
		return "", fmt.Errorf("marshaling search items: %w", err)
	}

	_, err = s.db.SQL().ExecContext(ctx,
		`INSERT INTO search_results (id, user, query, result_type, items, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.ID, result.User, result.Query, result.ResultType, string(items),
		result.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting search result: %w", err)
	}
	return result.ID, nil
}

// GetSearchResult returns a persisted search result, or nil if unknown.
func (s *SQLiteStore) GetSearchResult(ctx context.Context, id string) (*domain.SearchResult, error) {
	var r domain.SearchResult
	var items string
	var createdAt int64

	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT id, user, query, result_type, items, created_at
		 FROM search_results WHERE id = ?`, id,
	).Scan(&r.ID, &r.User, &r.Query, &r.ResultType, &items, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying search result: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &r.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling search items: %w", err)
	}
	r.CreatedAt = time.UnixMilli(createdAt)
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
