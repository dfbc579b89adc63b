package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"sat-practice-service/internal/domain"
)

// SessionRepository abstracts how live practice sessions are tracked
// (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// QuestionRepository loads question bank content (from cache/backing store).
// IDs returns identifiers newest-first.
type QuestionRepository interface {
	IDs(ctx context.Context) ([]int64, error)
	ByIDs(ctx context.Context, ids []int64) ([]domain.Question, error)
	All(ctx context.Context) ([]domain.Question, error)
}

// ExplanationClient fetches a rationale for the displayed answer layout.
type ExplanationClient interface {
	Explain(ctx context.Context, req domain.ExplanationRequest) (string, error)
}

// ReportClient forwards content-issue reports for review.
type ReportClient interface {
	Report(ctx context.Context, report domain.Report) error
}

// SubmissionSink accepts a free-text question submission.
type SubmissionSink interface {
	SubmitQuestion(ctx context.Context, text string) error
}

// SessionConfig carries the tunable session parameters.
type SessionConfig struct {
	DefaultQuizSize int
	ModuleSize      int
	ModuleCount     int
	TestDuration    time.Duration
}

// SessionInfo is returned when a session starts.
type SessionInfo struct {
	ID    string              `json:"sessionId"`
	Mode  domain.Mode         `json:"mode"`
	Total int                 `json:"total"`
	View  domain.QuestionView `json:"view"`
}

// PracticeService contains the practice use cases: starting quiz and test
// sessions, driving a session's state machine, and talking to the webhooks.
type PracticeService struct {
	sessions  SessionRepository
	questions QuestionRepository
	explainer ExplanationClient
	reporter  ReportClient
	intake    []SubmissionSink
	cfg       SessionConfig

	clock func() time.Time
	mu    sync.Mutex
	rnd   *rand.Rand
}

func NewPracticeService(sessions SessionRepository, questions QuestionRepository, cfg SessionConfig) *PracticeService {
	if cfg.DefaultQuizSize <= 0 {
		cfg.DefaultQuizSize = 27
	}
	if cfg.ModuleSize <= 0 {
		cfg.ModuleSize = 27
	}
	if cfg.ModuleCount <= 0 {
		cfg.ModuleCount = 2
	}
	if cfg.TestDuration <= 0 {
		cfg.TestDuration = 32 * time.Minute
	}
	return &PracticeService{
		sessions:  sessions,
		questions: questions,
		cfg:       cfg,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithWebhooks attaches the explanation and report clients.
func (s *PracticeService) WithWebhooks(explainer ExplanationClient, reporter ReportClient) *PracticeService {
	s.explainer = explainer
	s.reporter = reporter
	return s
}

// WithSubmissionSinks attaches one or more question-submission sinks.
func (s *PracticeService) WithSubmissionSinks(sinks ...SubmissionSink) *PracticeService {
	s.intake = append(s.intake, sinks...)
	return s
}

// WithClock is test-only for deterministic timestamps.
func (s *PracticeService) WithClock(now func() time.Time) *PracticeService {
	s.clock = now
	return s
}

// StartQuiz samples count questions from the bank (all of them when fewer
// exist), shuffles presentation and answer order, and opens an untimed
// session.
func (s *PracticeService) StartQuiz(ctx context.Context, count int) (SessionInfo, error) {
	if count <= 0 {
		count = s.cfg.DefaultQuizSize
	}
	ids, err := s.questions.IDs(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(ids) == 0 {
		return SessionInfo{}, domain.ErrNoQuestions
	}
	if count > len(ids) {
		count = len(ids)
	}
	return s.open(ctx, domain.ModeQuiz, s.pick(ids, count), 0, 0)
}

// StartTest opens a timed two-module test. The bank must hold at least a full
// test's worth of questions.
func (s *PracticeService) StartTest(ctx context.Context) (SessionInfo, error) {
	need := s.cfg.ModuleSize * s.cfg.ModuleCount
	ids, err := s.questions.IDs(ctx)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(ids) < need {
		return SessionInfo{}, fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientQuestions, need, len(ids))
	}
	return s.open(ctx, domain.ModeTest, s.pick(ids, need), s.cfg.TestDuration, s.cfg.ModuleSize)
}

func (s *PracticeService) open(ctx context.Context, mode domain.Mode, chosen []int64, budget time.Duration, moduleSize int) (SessionInfo, error) {
	rows, err := s.questions.ByIDs(ctx, chosen)
	if err != nil {
		return SessionInfo{}, err
	}
	if len(rows) == 0 {
		return SessionInfo{}, domain.ErrNoQuestions
	}

	s.mu.Lock()
	shuffleQuestions(rows, s.rnd)
	shuffled := make([]domain.ShuffledQuestion, len(rows))
	for i, q := range rows {
		shuffled[i] = shuffleAnswers(q, s.rnd)
	}
	s.mu.Unlock()

	session, err := NewSessionWithClock(uuid.NewString(), mode, shuffled, budget, moduleSize, s.clock)
	if err != nil {
		return SessionInfo{}, err
	}
	s.sessions.Put(session)
	return SessionInfo{
		ID:    session.ID(),
		Mode:  mode,
		Total: session.Len(),
		View:  session.View(),
	}, nil
}

func (s *PracticeService) pick(ids []int64, n int) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sampleIDs(ids, n, s.rnd)
}

// Lookup resolves a live session by ID.
func (s *PracticeService) Lookup(id string) (*Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// EndSession discards a session's state. Sessions do not survive exits.
func (s *PracticeService) EndSession(id string) {
	s.sessions.Delete(id)
}

// Explain fetches a rationale for the session's current question, phrased
// against the displayed answer layout.
func (s *PracticeService) Explain(ctx context.Context, sessionID string) (string, error) {
	session, err := s.Lookup(sessionID)
	if err != nil {
		return "", err
	}
	if s.explainer == nil {
		return "", fmt.Errorf("explanation webhook not configured")
	}
	return s.explainer.Explain(ctx, session.ExplanationRequest())
}

// SubmitReport flags a content issue on the session's current question.
func (s *PracticeService) SubmitReport(ctx context.Context, sessionID, reportType, message string) error {
	session, err := s.Lookup(sessionID)
	if err != nil {
		return err
	}
	if s.reporter == nil {
		return fmt.Errorf("report webhook not configured")
	}
	return s.reporter.Report(ctx, session.Report(reportType, message))
}

// SubmitQuestion hands a free-text submission to every configured sink. The
// operation fails whole: the first sink error aborts and is surfaced.
func (s *PracticeService) SubmitQuestion(ctx context.Context, text string) error {
	if len(s.intake) == 0 {
		return fmt.Errorf("question intake not configured")
	}
	for _, sink := range s.intake {
		if err := sink.SubmitQuestion(ctx, text); err != nil {
			return err
		}
	}
	return nil
}

// Questions lists the full bank, newest first, for the browse page.
func (s *PracticeService) Questions(ctx context.Context) ([]domain.Question, error) {
	return s.questions.All(ctx)
}
