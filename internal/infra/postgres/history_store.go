package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"quiz-session-engine/internal/domain"
)

type historyRow struct {
	bun.BaseModel `bun:"table:quiz_histories"`

	Username  string              `bun:"username,pk"`
	Results   []domain.QuizResult `bun:"results,type:jsonb"`
	UpdatedAt time.Time           `bun:"updated_at"`
}

// HistoryStore keeps each user's result list as one JSONB document.
type HistoryStore struct {
	db  bun.IDB
	now func() time.Time
}

func NewHistoryStore(db bun.IDB) *HistoryStore {
	return &HistoryStore{db: db, now: time.Now}
}

func (h *HistoryStore) ReadHistory(ctx context.Context, username string) ([]domain.QuizResult, error) {
	row := new(historyRow)
	err := h.db.NewSelect().Model(row).Where("username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.QuizResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Results == nil {
		return []domain.QuizResult{}, nil
	}
	return row.Results, nil
}

func (h *HistoryStore) WriteHistory(ctx context.Context, username string, results []domain.QuizResult) error {
	row := &historyRow{Username: username, Results: results, UpdatedAt: h.now().UTC()}
	_, err := h.db.NewInsert().
		Model(row).
		On("CONFLICT (username) DO UPDATE").
		Set("results = EXCLUDED.results").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
