package app

import (
	"math/rand"
	"testing"

	"sat-practice-service/internal/domain"
)

func TestShuffleAnswersKeepsMapping(t *testing.T) {
	q := domain.Question{
		ID: 1,
		Answers: map[domain.Letter]string{
			domain.LetterA: "alpha",
			domain.LetterB: "beta",
			domain.LetterC: "gamma",
			domain.LetterD: "delta",
		},
		CorrectAnswer: domain.LetterC,
	}

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := shuffleAnswers(q, rnd)

		if len(shuffled.Display) != 4 {
			t.Fatalf("expected 4 displayed answers, got %d", len(shuffled.Display))
		}
		seen := map[domain.Letter]bool{}
		for pos, d := range shuffled.Display {
			if d.DisplayLetter != domain.Letters[pos] {
				t.Fatalf("display letters must follow position, got %s at %d", d.DisplayLetter, pos)
			}
			if d.Text != q.AnswerText(d.Letter) {
				t.Fatalf("text %q detached from original letter %s", d.Text, d.Letter)
			}
			seen[d.Letter] = true
		}
		if len(seen) != 4 {
			t.Fatalf("each original letter must appear once, got %v", seen)
		}

		display := shuffled.DisplayCorrectLetter()
		choice, ok := shuffled.ByDisplayLetter(display)
		if !ok || choice.Letter != domain.LetterC {
			t.Fatalf("correct mapping lost: %s resolved to %+v", display, choice)
		}
	}
}

func TestSampleIDsWithoutReplacement(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5}
	rnd := rand.New(rand.NewSource(7))

	picked := sampleIDs(ids, 3, rnd)
	if len(picked) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(picked))
	}
	seen := map[int64]bool{}
	for _, id := range picked {
		if seen[id] {
			t.Fatalf("duplicate id %d in sample %v", id, picked)
		}
		seen[id] = true
	}

	// Oversampling caps at the population.
	if got := sampleIDs(ids, 10, rnd); len(got) != 5 {
		t.Fatalf("expected whole population, got %v", got)
	}
	// The source slice is untouched.
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("source slice mutated: %v", ids)
		}
	}
}

func TestScaledScoreBand(t *testing.T) {
	cases := []struct {
		raw, total, want int
	}{
		{0, 54, 200},
		{54, 54, 800},
		{27, 54, 500},
		{-1, 54, 200},
		{60, 54, 800},
		{0, 0, 200},
	}
	for _, c := range cases {
		if got := scaledScore(c.raw, c.total); got != c.want {
			t.Fatalf("scaledScore(%d, %d) = %d, want %d", c.raw, c.total, got, c.want)
		}
	}
}
