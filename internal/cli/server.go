package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/config"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/catalog"
	"quiz-session-engine/internal/infra/memory"
	"quiz-session-engine/internal/infra/postgres"
	redisinfra "quiz-session-engine/internal/infra/redis"
	"quiz-session-engine/internal/infra/sqlite"
	transport "quiz-session-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the external connections opened for one server run.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	bun   *bun.DB
	close []func()
}

func (b *backends) shutdown() {
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = newRedisClient(cfg)
		b.close = append(b.close, func() { _ = b.redis.Close() })
	}
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			b.shutdown()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.shutdown()
			return nil, err
		}
		b.pool = pool
		b.close = append(b.close, pool.Close)
		b.bun = postgres.OpenBun(cfg.Postgres.URL)
		b.close = append(b.close, func() { _ = b.bun.Close() })
	}
	return b, nil
}

func buildQuizLoader(cfg config.Config, b *backends) (memory.QuizLoader, error) {
	switch {
	case cfg.Catalog.URL != "":
		timeout := config.TTLDuration(cfg.Catalog.Timeout, 5*time.Second)
		log.Printf("quizzes: remote catalog %s", cfg.Catalog.URL)
		return catalog.NewClient(cfg.Catalog.URL, &http.Client{Timeout: timeout}), nil
	case b.pool != nil:
		log.Printf("quizzes: postgres")
		return postgres.NewQuizLoader(b.pool), nil
	case cfg.Quiz.File != "":
		quizzes, err := config.LoadQuizzes(cfg.Quiz.File)
		if err != nil {
			return nil, err
		}
		log.Printf("quizzes: %d from %s", len(quizzes), cfg.Quiz.File)
		return memory.NewStaticQuizLoaderFromList(quizzes), nil
	default:
		log.Printf("quizzes: built-in sample")
		return memory.NewStaticQuizLoaderFromList(sampleQuizzes()), nil
	}
}

func buildHistory(cfg config.Config, b *backends) (app.HistoryStore, error) {
	switch cfg.History.Backend {
	case config.HistoryRedis:
		return redisinfra.NewHistoryStore(b.redis), nil
	case config.HistoryPostgres:
		return postgres.NewHistoryStore(b.bun), nil
	case config.HistorySQLite:
		store, err := sqlite.NewHistoryStore(cfg.History.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		b.close = append(b.close, func() { _ = store.Close() })
		return store, nil
	default:
		return memory.NewHistoryStore(), nil
	}
}

func buildProvider(cfg config.Config) *auth.Provider {
	secret := cfg.Auth.Secret
	if secret == "" {
		log.Printf("auth.secret not set; using an insecure development secret")
		secret = "dev-secret"
	}
	return auth.NewProvider(secret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TTL, 8*time.Hour))
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.shutdown()

	loader, err := buildQuizLoader(cfg, b)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if b.redis != nil {
		quizRepo = redisinfra.NewQuizRepository(b.redis, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if b.redis != nil {
		store = redisinfra.NewSessionStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	} else {
		store = memory.NewSessionStore()
	}

	history, err := buildHistory(cfg, b)
	if err != nil {
		return err
	}
	log.Printf("history: %s", cfg.History.Backend)

	service := app.NewQuizService(store, quizRepo, history,
		app.WithTicker(app.RealTicker, config.TTLDuration(cfg.Session.Tick, time.Second)),
		app.WithPersistTimeout(config.TTLDuration(cfg.Session.PersistTimeout, 5*time.Second)),
	)
	handler := transport.NewRouter(service, buildProvider(cfg), transport.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: config.TTLDuration(cfg.Server.RequestTimeout, 30*time.Second),
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes is served when no catalog, database or quiz file is configured.
func sampleQuizzes() []domain.QuizDefinition {
	return []domain.QuizDefinition{
		{
			ID:          "quiz-1",
			Title:       "Arithmetic",
			Description: "Two quick sums.",
			TimeLimit:   1,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
				},
				{
					ID:   "q2",
					Text: "What is 3 * 3?",
					Options: []domain.Option{
						{ID: "o1", Text: "9", Correct: true},
						{ID: "o2", Text: "6", Correct: false},
					},
				},
			},
		},
	}
}
