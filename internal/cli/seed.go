package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"quiz-session-engine/internal/config"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/postgres"
	redisinfra "quiz-session-engine/internal/infra/redis"
)

// NewSeedCmd loads quiz definitions from a YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quiz definitions from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/quizzes.yaml", "YAML file with a top-level quizzes list")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	quizzes, err := config.LoadQuizzes(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	db := postgres.OpenBun(cfg.Postgres.URL)
	defer db.Close()

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, q := range quizzes {
			if err := postgres.SaveQuiz(ctx, tx, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed quizzes: %w", err)
	}
	log.Printf("seeded %d quizzes from %s", len(quizzes), file)

	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg)
		defer client.Close()
		if err := invalidateSeeded(ctx, client, quizzes); err != nil {
			log.Printf("invalidate cached quizzes: %v", err)
		}
	}
	return nil
}

// invalidateSeeded drops cached copies of the seeded quizzes so servers pick up the new content.
func invalidateSeeded(ctx context.Context, client *redis.Client, quizzes []domain.QuizDefinition) error {
	ids := make([]string, 0, len(quizzes))
	for _, q := range quizzes {
		ids = append(ids, q.ID)
	}
	return redisinfra.InvalidateQuizzes(ctx, client, ids...)
}
