package domain

import "time"

// Letter labels one of the four answer choices, A through D.
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
)

// Letters is the canonical choice order as stored in the question bank.
var Letters = []Letter{LetterA, LetterB, LetterC, LetterD}

// Valid reports whether l is one of the four choice labels.
func (l Letter) Valid() bool {
	switch l {
	case LetterA, LetterB, LetterC, LetterD:
		return true
	}
	return false
}

// Question is an immutable SAT question as stored in the question bank.
type Question struct {
	ID            int64             `json:"id"`
	Passage       string            `json:"passage,omitempty"`
	Prompt        string            `json:"question"`
	Answers       map[Letter]string `json:"answers"`
	CorrectAnswer Letter            `json:"correctAnswer"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// AnswerText returns the stored text for the given original letter.
func (q Question) AnswerText(l Letter) string {
	return q.Answers[l]
}

// DisplayAnswer is one answer choice in its shuffled display position.
// DisplayLetter is the A-D label of the position; Letter is the original
// stored letter the choice maps back to.
type DisplayAnswer struct {
	DisplayLetter Letter `json:"displayLetter"`
	Letter        Letter `json:"letter"`
	Text          string `json:"text"`
}

// ShuffledQuestion is a Question plus the randomized display order of its
// choices. The display order is fixed for the lifetime of a session.
type ShuffledQuestion struct {
	Question
	Display []DisplayAnswer `json:"display"`
}

// DisplayCorrectLetter returns the display label of the position holding the
// correct choice, so explanations can reference what the learner actually saw.
func (s ShuffledQuestion) DisplayCorrectLetter() Letter {
	for _, d := range s.Display {
		if d.Letter == s.CorrectAnswer {
			return d.DisplayLetter
		}
	}
	return s.CorrectAnswer
}

// ByDisplayLetter resolves a display label back to the underlying choice.
func (s ShuffledQuestion) ByDisplayLetter(l Letter) (DisplayAnswer, bool) {
	for _, d := range s.Display {
		if d.DisplayLetter == l {
			return d, true
		}
	}
	return DisplayAnswer{}, false
}

// Mode selects between the untimed revision quiz and the timed two-module test.
type Mode string

const (
	ModeQuiz Mode = "quiz"
	ModeTest Mode = "test"
)

// Phase is the session lifecycle phase. Transitions are strictly one-way:
// setup -> active -> results.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseActive  Phase = "active"
	PhaseResults Phase = "results"
)

// AnnotationTarget names which text of a question an annotation applies to.
type AnnotationTarget string

const (
	TargetPassage AnnotationTarget = "passage"
	TargetPrompt  AnnotationTarget = "prompt"
)

// AnnotationMode is the rendering style of an annotation span.
type AnnotationMode string

const (
	ModeHighlight AnnotationMode = "highlight"
	ModeUnderline AnnotationMode = "underline"
)

// Annotation is a styled span over the target text, in rune offsets.
type Annotation struct {
	Start int            `json:"start"`
	End   int            `json:"end"`
	Mode  AnnotationMode `json:"mode"`
	Color string         `json:"color"`
}

// QuestionState is the per-question bookkeeping inside a session.
// Finalized and HadWrongAttempt are one-way latches; IncorrectAttempts only
// grows; TimeSpentMs only grows, and only at navigation flush points.
type QuestionState struct {
	Finalized         bool                `json:"finalized"`
	IncorrectAttempts map[Letter]struct{} `json:"-"`
	HadWrongAttempt   bool                `json:"hadWrongAttempt"`
	TimeSpentMs       int64               `json:"timeSpentMs"`
	PassageNotes      []Annotation        `json:"passageNotes,omitempty"`
	PromptNotes       []Annotation        `json:"promptNotes,omitempty"`
}

// ReviewStatus is the tri-state standing of a question in the review grid.
type ReviewStatus string

const (
	StatusUnanswered ReviewStatus = "unanswered"
	StatusCorrect    ReviewStatus = "correct"
	StatusIncorrect  ReviewStatus = "incorrect"
)

// AnswerFeedback is the immediate outcome of an answer selection.
type AnswerFeedback struct {
	Correct        bool   `json:"correct"`
	Finalized      bool   `json:"finalized"`
	DisplayCorrect Letter `json:"displayCorrect,omitempty"`
	Score          int    `json:"score"`
}

// TimerState is a derived snapshot of session timing. Ticks are idempotent
// reads; Expired is only ever true for timed tests.
type TimerState struct {
	ElapsedSeconds   int  `json:"elapsedSeconds"`
	RemainingSeconds int  `json:"remainingSeconds,omitempty"`
	LowTime          bool `json:"lowTime,omitempty"`
	Expired          bool `json:"-"`
}

// QuestionResult is one row of the results summary.
type QuestionResult struct {
	Index       int          `json:"index"`
	QuestionID  int64        `json:"questionId"`
	Status      ReviewStatus `json:"status"`
	TimeSpentMs int64        `json:"timeSpentMs"`
}

// Results is the terminal summary of a finished session.
type Results struct {
	Mode          Mode             `json:"mode"`
	Score         int              `json:"score"`
	Total         int              `json:"total"`
	AverageTimeMs int64            `json:"averageTimeMs"`
	ModuleScores  []int            `json:"moduleScores,omitempty"`
	ScaledScore   int              `json:"scaledScore,omitempty"`
	Questions     []QuestionResult `json:"questions"`
}

// DisplayChoice is one answer choice as rendered: position label and text
// only, never the original letter.
type DisplayChoice struct {
	DisplayLetter Letter `json:"displayLetter"`
	Text          string `json:"text"`
}

// QuestionView is the client-facing snapshot of one question plus its
// transient UI state. FeedbackVisible follows the finalized flag on entry to
// a question; DisplayCorrect is revealed only once finalized.
type QuestionView struct {
	Index           int             `json:"index"`
	Total           int             `json:"total"`
	Module          int             `json:"module,omitempty"`
	Passage         string          `json:"passage,omitempty"`
	Prompt          string          `json:"question"`
	Answers         []DisplayChoice `json:"answers"`
	Finalized       bool            `json:"finalized"`
	FeedbackVisible bool            `json:"feedbackVisible"`
	TriedWrong      []Letter        `json:"triedWrong,omitempty"`
	DisplayCorrect  Letter          `json:"displayCorrect,omitempty"`
	PassageNotes    []Annotation    `json:"passageNotes,omitempty"`
	PromptNotes     []Annotation    `json:"promptNotes,omitempty"`
}

// ExplanationRequest is the explanation webhook payload. Answer texts are the
// displayed (post-shuffle) texts relabeled A-D in display order, and
// CorrectAnswer is the display letter, so the explanation matches the layout
// the learner saw.
type ExplanationRequest struct {
	Passage       string `json:"passage"`
	Question      string `json:"question"`
	AnswerA       string `json:"answer A"`
	AnswerB       string `json:"answer B"`
	AnswerC       string `json:"answer C"`
	AnswerD       string `json:"answer D"`
	CorrectAnswer string `json:"correct answer"`
}

// ReportAnswers carries the stored answer texts in original letter order.
type ReportAnswers struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Report is the content-issue report webhook payload. Unlike explanations it
// uses the stored letters, since reviewers work against the question bank.
type Report struct {
	Type          string        `json:"type"`
	Message       string        `json:"message"`
	Question      string        `json:"question"`
	Passage       string        `json:"passage"`
	Answers       ReportAnswers `json:"answers"`
	CorrectAnswer string        `json:"correctAnswer"`
	QuestionID    int64         `json:"questionId"`
}

// Submission is a free-text question submission awaiting manual review.
type Submission struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
