package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sat-practice-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store, newest
// first.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the bank with TTL to avoid re-reading the store
// on every session start.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) IDs(ctx context.Context) ([]int64, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, q := range rows {
		ids[i] = q.ID
	}
	return ids, nil
}

func (r *QuestionRepository) ByIDs(ctx context.Context, ids []int64) ([]domain.Question, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Question, len(rows))
	for _, q := range rows {
		byID[q.ID] = q
	}
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *QuestionRepository) All(ctx context.Context) ([]domain.Question, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), rows...), nil
}

func (r *QuestionRepository) load(ctx context.Context) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if r.cached != nil && r.expiresAt.After(now) {
		rows := r.cached
		r.mu.RUnlock()
		return rows, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("bank", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.cached != nil && r.expiresAt.After(now) {
			rows := r.cached
			r.mu.RUnlock()
			return rows, nil
		}
		r.mu.RUnlock()

		rows, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cached = rows
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a simple loader backed by a fixed slice (useful for
// tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	if len(l.questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return append([]domain.Question(nil), l.questions...), nil
}
