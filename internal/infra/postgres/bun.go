package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-session-engine/internal/domain"
)

// OpenBun opens a bun handle over the pgdriver connector.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID   string          `bun:"id,pk"`
	Data json.RawMessage `bun:"data,type:jsonb"`
}

// SaveQuiz inserts or replaces a quiz definition.
func SaveQuiz(ctx context.Context, db bun.IDB, quiz domain.QuizDefinition) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	row := &quizRow{ID: quiz.ID, Data: raw}
	_, err = db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save quiz %s: %w", quiz.ID, err)
	}
	return nil
}
