package domain

import "errors"

var (
	// ErrQuizNotFound indicates the catalog has no quiz with the requested id.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrTransport covers network and authorization failures talking to the catalog.
	ErrTransport = errors.New("catalog transport failure")
	// ErrInvalidQuiz is returned when a loaded definition breaks a structural invariant.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrLoadFailure wraps every failure to load a quiz definition for a session.
	ErrLoadFailure = errors.New("quiz load failed")
	// ErrAuthMissing is returned when no credential or username is available.
	ErrAuthMissing = errors.New("authentication required")
	// ErrPersistence wraps history read/write failures.
	ErrPersistence = errors.New("result persistence failed")

	// ErrNoSelection is returned by advance when no option is selected.
	ErrNoSelection = errors.New("no option selected")
	// ErrOptionNotFound indicates a selected option id is not on the current question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrQuestionOutOfRange indicates a jump target outside the question list.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrInvalidTransition is returned for actions not allowed in the current phase.
	ErrInvalidTransition = errors.New("action not allowed in current session phase")
	// ErrSessionFinalized is returned once a session has been scored.
	ErrSessionFinalized = errors.New("quiz session already finalized")
	// ErrSessionClosed is returned after a session has been torn down.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrSessionNotFound is returned when a quiz session is not registered.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrResultNotFound is returned when no stored attempt matches a lookup.
	ErrResultNotFound = errors.New("quiz result not found")
)
