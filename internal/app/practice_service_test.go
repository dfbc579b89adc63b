package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sat-practice-service/internal/app"
	"sat-practice-service/internal/domain"
	"sat-practice-service/internal/infra/memory"
)

func bank(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			ID:     int64(i + 1),
			Prompt: fmt.Sprintf("question %d", i+1),
			Answers: map[domain.Letter]string{
				domain.LetterA: "first",
				domain.LetterB: "second",
				domain.LetterC: "third",
				domain.LetterD: "fourth",
			},
			CorrectAnswer: domain.LetterA,
			CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		}
	}
	return questions
}

func newService(questions []domain.Question, cfg app.SessionConfig) *app.PracticeService {
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(questions), time.Minute)
	return app.NewPracticeService(memory.NewSessionStore(), repo, cfg)
}

func TestStartQuizSamplesFromBank(t *testing.T) {
	ctx := context.Background()
	service := newService(bank(5), app.SessionConfig{DefaultQuizSize: 2})

	info, err := service.StartQuiz(ctx, 3)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if info.Total != 3 {
		t.Fatalf("expected 3 questions, got %d", info.Total)
	}
	if info.Mode != domain.ModeQuiz {
		t.Fatalf("expected quiz mode, got %s", info.Mode)
	}
	if info.View.Index != 0 || len(info.View.Answers) != 4 {
		t.Fatalf("expected first-question view with 4 answers, got %+v", info.View)
	}

	// Requesting more than the bank holds falls back to the whole bank.
	info, err = service.StartQuiz(ctx, 10)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if info.Total != 5 {
		t.Fatalf("expected whole bank, got %d", info.Total)
	}

	// Zero count uses the configured default.
	info, err = service.StartQuiz(ctx, 0)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if info.Total != 2 {
		t.Fatalf("expected default size 2, got %d", info.Total)
	}
}

func TestStartQuizEmptyBank(t *testing.T) {
	service := newService(nil, app.SessionConfig{})
	if _, err := service.StartQuiz(context.Background(), 5); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestStartTestRequiresFullBank(t *testing.T) {
	cfg := app.SessionConfig{ModuleSize: 2, ModuleCount: 2, TestDuration: time.Minute}
	service := newService(bank(3), cfg)
	if _, err := service.StartTest(context.Background()); !errors.Is(err, domain.ErrInsufficientQuestions) {
		t.Fatalf("expected ErrInsufficientQuestions, got %v", err)
	}
}

func TestStartTestOpensTimedSession(t *testing.T) {
	ctx := context.Background()
	cfg := app.SessionConfig{ModuleSize: 2, ModuleCount: 2, TestDuration: time.Minute}
	service := newService(bank(6), cfg)

	info, err := service.StartTest(ctx)
	if err != nil {
		t.Fatalf("start test: %v", err)
	}
	if info.Mode != domain.ModeTest || info.Total != 4 {
		t.Fatalf("expected 4-question test, got %+v", info)
	}

	session, err := service.Lookup(info.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	ts := session.TimerTick()
	if ts.RemainingSeconds <= 0 || ts.Expired {
		t.Fatalf("expected running timer, got %+v", ts)
	}
}

func TestLookupUnknownSession(t *testing.T) {
	service := newService(bank(1), app.SessionConfig{})
	if _, err := service.Lookup("missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEndSessionDiscardsState(t *testing.T) {
	ctx := context.Background()
	service := newService(bank(2), app.SessionConfig{})
	info, err := service.StartQuiz(ctx, 2)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	service.EndSession(info.ID)
	if _, err := service.Lookup(info.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

type recordingSink struct {
	texts []string
	err   error
}

func (s *recordingSink) SubmitQuestion(_ context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, text)
	return nil
}

func TestSubmitQuestionFansOut(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	service := newService(bank(1), app.SessionConfig{}).WithSubmissionSinks(first, second)

	if err := service.SubmitQuestion(context.Background(), "suggest a geometry question"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(first.texts) != 1 || len(second.texts) != 1 {
		t.Fatalf("expected both sinks hit, got %d and %d", len(first.texts), len(second.texts))
	}
}

func TestSubmitQuestionAbortsOnSinkError(t *testing.T) {
	boom := errors.New("sink down")
	first := &recordingSink{err: boom}
	second := &recordingSink{}
	service := newService(bank(1), app.SessionConfig{}).WithSubmissionSinks(first, second)

	if err := service.SubmitQuestion(context.Background(), "anything"); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(second.texts) != 0 {
		t.Fatalf("expected later sinks untouched after failure")
	}
}

func TestSubmitQuestionWithoutSinks(t *testing.T) {
	service := newService(bank(1), app.SessionConfig{})
	if err := service.SubmitQuestion(context.Background(), "anything"); err == nil {
		t.Fatalf("expected error when no sinks are configured")
	}
}

type capturingExplainer struct {
	req domain.ExplanationRequest
}

func (c *capturingExplainer) Explain(_ context.Context, req domain.ExplanationRequest) (string, error) {
	c.req = req
	return "because the passage says so", nil
}

func TestExplainSendsDisplayedAnswers(t *testing.T) {
	ctx := context.Background()
	explainer := &capturingExplainer{}
	service := newService(bank(1), app.SessionConfig{}).WithWebhooks(explainer, nil)

	info, err := service.StartQuiz(ctx, 1)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	out, err := service.Explain(ctx, info.ID)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if out != "because the passage says so" {
		t.Fatalf("unexpected explanation %q", out)
	}
	if explainer.req.Question != "question 1" {
		t.Fatalf("expected current question in payload, got %q", explainer.req.Question)
	}
	if !domain.Letter(explainer.req.CorrectAnswer).Valid() {
		t.Fatalf("expected a display letter, got %q", explainer.req.CorrectAnswer)
	}
	got := map[string]bool{
		explainer.req.AnswerA: true,
		explainer.req.AnswerB: true,
		explainer.req.AnswerC: true,
		explainer.req.AnswerD: true,
	}
	for _, text := range []string{"first", "second", "third", "fourth"} {
		if !got[text] {
			t.Fatalf("answer %q missing from payload %+v", text, explainer.req)
		}
	}
}
