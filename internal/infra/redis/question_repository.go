package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"sat-practice-service/internal/domain"
	"sat-practice-service/internal/infra/memory"
)

const bankKey = "sat:questions"

// QuestionRepository caches the question bank in Redis as one JSON blob
// (ordered newest-first, so ID ordering survives the round trip) and falls
// back to a loader on cache miss.
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
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
	return r.load(ctx)
}

func (r *QuestionRepository) load(ctx context.Context) ([]domain.Question, error) {
	raw, err := r.client.Get(ctx, bankKey).Bytes()
	if err == nil && len(raw) > 0 {
		return decodeBank(raw)
	}

	result, err, _ := r.sf.Do(bankKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := r.client.Get(ctx, bankKey).Bytes()
		if err == nil && len(raw) > 0 {
			return decodeBank(raw)
		}

		rows, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(rows); err == nil {
			_ = r.client.Set(ctx, bankKey, data, r.ttlWithJitter()).Err()
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func decodeBank(raw []byte) ([]domain.Question, error) {
	var rows []domain.Question
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode cached questions: %w", err)
	}
	return rows, nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
