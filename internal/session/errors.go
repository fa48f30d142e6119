package session

import "errors"

// Caller mistakes surface as typed errors, never panics.
var (
	// ErrNoActiveSession is returned when an operation needs a running or
	// paused session and none exists.
	ErrNoActiveSession = errors.New("no active session")

	// ErrIndexOutOfRange is returned by Navigate for an index outside the
	// question order.
	ErrIndexOutOfRange = errors.New("question index out of range")

	// ErrNotFound is returned when resuming a test with no snapshot, or one
	// whose attempt was already submitted.
	ErrNotFound = errors.New("session not found")

	// ErrUnknownQuestion is returned when answering a question that is not
	// part of the active session.
	ErrUnknownQuestion = errors.New("question not in session")

	// ErrNoQuestions is returned by Start for a test with an empty question
	// set; a session needs at least one question for the cursor to point at.
	ErrNoQuestions = errors.New("test has no questions")
)
