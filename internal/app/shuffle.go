package app

import (
	"math/rand"

	"sat-practice-service/internal/domain"
)

// shuffleAnswers produces the randomized display order for one question via
// Fisher-Yates. The original letter rides along with each choice, so
// correctness checks and explanation payloads keep their mapping back to the
// stored correct answer.
func shuffleAnswers(q domain.Question, rnd *rand.Rand) domain.ShuffledQuestion {
	display := make([]domain.DisplayAnswer, len(domain.Letters))
	for i, l := range domain.Letters {
		display[i] = domain.DisplayAnswer{Letter: l, Text: q.AnswerText(l)}
	}
	for i := len(display) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		display[i], display[j] = display[j], display[i]
	}
	for i := range display {
		display[i].DisplayLetter = domain.Letters[i]
	}
	return domain.ShuffledQuestion{Question: q, Display: display}
}

// sampleIDs picks n identifiers uniformly without replacement.
func sampleIDs(ids []int64, n int, rnd *rand.Rand) []int64 {
	pool := append([]int64(nil), ids...)
	for i := len(pool) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}

// shuffleQuestions randomizes the presentation order of a fetched batch.
func shuffleQuestions(questions []domain.Question, rnd *rand.Rand) {
	for i := len(questions) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
