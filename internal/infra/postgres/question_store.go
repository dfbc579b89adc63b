package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"sat-practice-service/internal/domain"
)

// QuestionStore reads the question bank and records free-text submissions.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

// LoadQuestions returns all bank rows, newest first.
func (s *QuestionStore) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(passage, ''), question,
		       answer_a, answer_b, answer_c, answer_d,
		       correct_answer, created_at
		FROM questions
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			a, b    string
			c, d    string
			correct string
		)
		if err := rows.Scan(&q.ID, &q.Passage, &q.Prompt, &a, &b, &c, &d, &correct, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Answers = map[domain.Letter]string{
			domain.LetterA: a,
			domain.LetterB: b,
			domain.LetterC: c,
			domain.LetterD: d,
		}
		q.CorrectAnswer = domain.Letter(correct)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}

// SubmitQuestion stores a free-text submission for manual review. The blob is
// not structured at submission time.
func (s *QuestionStore) SubmitQuestion(ctx context.Context, text string) error {
	if _, err := s.pool.Exec(ctx, `INSERT INTO submissions (body) VALUES ($1)`, text); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}
