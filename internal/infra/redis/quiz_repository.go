package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
)

const listingKey = "quiz:catalog:list"

// QuizRepository caches quiz definitions in Redis and falls back to a loader on cache miss.
// Definitions are stored as JSON under quiz:{quizID}:definition.
type QuizRepository struct {
	client *redis.Client
	loader memory.QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader memory.QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	key := definitionKey(quizID)
	if quiz, ok := r.readDefinition(ctx, key); ok {
		return quiz, nil
	}

	// Definitions are the same for every user, so one load serves all waiters. It runs
	// detached from the first caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.readDefinition(loadCtx, key); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(loadCtx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}
		r.write(loadCtx, key, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

func (r *QuizRepository) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	if raw, err := r.client.Get(ctx, listingKey).Bytes(); err == nil {
		var items []domain.QuizSummary
		if err := json.Unmarshal(raw, &items); err == nil {
			return items, nil
		}
	}

	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := r.sf.Do(listingKey, func() (interface{}, error) {
		items, err := r.loader.ListQuizzes(loadCtx)
		if err != nil {
			return nil, err
		}
		r.write(loadCtx, listingKey, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizSummary), nil
}

// InvalidateQuizzes removes the cached definitions of quizIDs and the cached listing.
func InvalidateQuizzes(ctx context.Context, client *redis.Client, quizIDs ...string) error {
	keys := make([]string, 0, len(quizIDs)+1)
	for _, id := range quizIDs {
		keys = append(keys, definitionKey(id))
	}
	keys = append(keys, listingKey)
	return client.Del(ctx, keys...).Err()
}

func (r *QuizRepository) readDefinition(ctx context.Context, key string) (domain.QuizDefinition, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis quiz cache read %s: %v", key, err)
		}
		return domain.QuizDefinition{}, false
	}
	var quiz domain.QuizDefinition
	if err := json.Unmarshal(raw, &quiz); err != nil {
		log.Printf("redis quiz cache decode %s: %v", key, err)
		return domain.QuizDefinition{}, false
	}
	return quiz, true
}

// write is best-effort; a cache that cannot be filled only costs a reload.
func (r *QuizRepository) write(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err(); err != nil {
		log.Printf("redis quiz cache write %s: %v", key, err)
	}
}

func definitionKey(quizID string) string {
	return "quiz:" + quizID + ":definition"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
