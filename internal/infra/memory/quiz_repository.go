package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-engine/internal/domain"
)

// QuizLoader fetches quiz content from a backing catalog (document DB, HTTP API, fixtures).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

const listKey = "\x00list"

// QuizRepository caches quiz definitions and the catalog listing with TTL to avoid
// repeated catalog hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu      sync.RWMutex
	cache   map[string]cachedQuiz
	listing *cachedListing
}

type cachedQuiz struct {
	quiz      domain.QuizDefinition
	expiresAt time.Time
}

type cachedListing struct {
	items     []domain.QuizSummary
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	// Definitions are the same for every user, so one load serves all waiters. It runs
	// detached from the first caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(loadCtx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: expiresAt}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

// ListQuizzes returns the catalog listing, cached under the same TTL as definitions.
func (r *QuizRepository) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	now := r.clock()
	r.mu.RLock()
	if r.listing != nil && r.listing.expiresAt.After(now) {
		items := append([]domain.QuizSummary(nil), r.listing.items...)
		r.mu.RUnlock()
		return items, nil
	}
	r.mu.RUnlock()

	loadCtx := context.WithoutCancel(ctx)
	result, err, _ := r.sf.Do(listKey, func() (interface{}, error) {
		items, err := r.loader.ListQuizzes(loadCtx)
		if err != nil {
			return nil, err
		}
		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.listing = &cachedListing{items: items, expiresAt: expiresAt}
		r.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.QuizSummary(nil), result.([]domain.QuizSummary)...), nil
}

func (r *QuizRepository) cached(quizID string) (domain.QuizDefinition, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		return entry.quiz, true
	}
	return domain.QuizDefinition{}, false
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
