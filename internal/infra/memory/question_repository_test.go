package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"sat-practice-service/internal/domain"
)

type countingLoader struct {
	calls     int
	questions []domain.Question
	err       error
}

func (l *countingLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.questions, nil
}

func testQuestions() []domain.Question {
	return []domain.Question{
		{ID: 3, Prompt: "newest", CorrectAnswer: domain.LetterA},
		{ID: 2, Prompt: "middle", CorrectAnswer: domain.LetterB},
		{ID: 1, Prompt: "oldest", CorrectAnswer: domain.LetterC},
	}
}

func TestQuestionRepositoryCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{questions: testQuestions()}
	repo := NewQuestionRepository(loader, time.Minute)

	current := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		ids, err := repo.IDs(ctx)
		if err != nil {
			t.Fatalf("ids: %v", err)
		}
		if len(ids) != 3 || ids[0] != 3 {
			t.Fatalf("expected newest-first ids, got %v", ids)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single load within TTL, got %d", loader.calls)
	}

	// Past TTL plus jitter headroom the cache refills.
	current = current.Add(2 * time.Minute)
	if _, err := repo.IDs(ctx); err != nil {
		t.Fatalf("ids after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

func TestByIDsPreservesRequestedOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestionRepository(&countingLoader{questions: testQuestions()}, time.Minute)

	rows, err := repo.ByIDs(ctx, []int64{1, 3, 99})
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != 1 || rows[1].ID != 3 {
		t.Fatalf("expected rows [1 3] in requested order, got %v", rows)
	}
}

func TestAllReturnsACopy(t *testing.T) {
	ctx := context.Background()
	repo := NewQuestionRepository(&countingLoader{questions: testQuestions()}, time.Minute)

	rows, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	rows[0].Prompt = "mutated"

	again, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if again[0].Prompt != "newest" {
		t.Fatalf("cache leaked a mutable slice: %q", again[0].Prompt)
	}
}

func TestLoaderErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	repo := NewQuestionRepository(&countingLoader{err: boom}, time.Minute)
	if _, err := repo.IDs(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestStaticLoaderEmptyBank(t *testing.T) {
	loader := NewStaticQuestionLoader(nil)
	if _, err := loader.LoadQuestions(context.Background()); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}
