package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"quiz-session-engine/internal/domain"
)

// HistoryStore keeps per-user result lists in a local SQLite file, one JSON document per user.
type HistoryStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewHistoryStore(path string) (*HistoryStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "quiz-history.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &HistoryStore{db: db, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func (s *HistoryStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS quiz_histories (
			username TEXT PRIMARY KEY,
			results TEXT NOT NULL,
			updated_at_unix INTEGER NOT NULL
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *HistoryStore) ReadHistory(ctx context.Context, username string) ([]domain.QuizResult, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT results FROM quiz_histories WHERE username = ?`, username).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.QuizResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	var results []domain.QuizResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", username, err)
	}
	return results, nil
}

func (s *HistoryStore) WriteHistory(ctx context.Context, username string, results []domain.QuizResult) error {
	if results == nil {
		results = []domain.QuizResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quiz_histories (username, results, updated_at_unix)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			results = excluded.results,
			updated_at_unix = excluded.updated_at_unix`,
		username, string(raw), s.now().Unix(),
	)
	return err
}
