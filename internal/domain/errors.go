package domain

import "errors"

var (
	// ErrNoQuestions is returned when the question bank is empty.
	ErrNoQuestions = errors.New("no questions available")
	// ErrInsufficientQuestions is returned when fewer questions exist than a test needs.
	ErrInsufficientQuestions = errors.New("not enough questions available")
	// ErrSessionNotFound is returned when a session ID is unknown or already discarded.
	ErrSessionNotFound = errors.New("practice session not found")
	// ErrSessionFinished is returned on mutation attempts after the results phase.
	ErrSessionFinished = errors.New("practice session already finished")
	// ErrIndexOutOfRange indicates a navigation target outside the question sequence.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrUnknownOption indicates a display letter that is not A-D.
	ErrUnknownOption = errors.New("unknown answer option")
	// ErrModuleLocked is returned when acting on a question in a finished test module.
	ErrModuleLocked = errors.New("module already finished")
	// ErrNotFinished is returned when results are requested before the session ends.
	ErrNotFinished = errors.New("practice session still active")
)
