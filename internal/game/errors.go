// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Every error returned by the Engine wraps exactly one of these.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrPrecondition = errors.New("precondition failed")
	ErrUpstream     = errors.New("content provider failed")
)

// Refinements, matched with errors.Is against either the refinement or its class.
var (
	ErrLobbyFull       = fmt.Errorf("%w: lobby is full", ErrPrecondition)
	ErrAlreadyStarted  = fmt.Errorf("%w: game already started", ErrPrecondition)
	ErrNotHost         = fmt.Errorf("%w: only the host can do that", ErrPrecondition)
	ErrNotReady        = fmt.Errorf("%w: not all players are ready", ErrPrecondition)
	ErrNotPlaying      = fmt.Errorf("%w: game is not accepting answers", ErrPrecondition)
	ErrNotReviewing    = fmt.Errorf("%w: game is not in review", ErrPrecondition)
	ErrRoundMismatch   = fmt.Errorf("%w: round is not the current round", ErrPrecondition)
	ErrDuplicateAnswer = fmt.Errorf("%w: answer already submitted", ErrPrecondition)
	ErrGradingBusy     = fmt.Errorf("%w: round is already being graded", ErrPrecondition)

	// ErrUnknownPlayer means the session's player no longer exists. The engine has no
	// connection to report it on, so the caller does.
	ErrUnknownPlayer = fmt.Errorf("%w: player not found", ErrNotFound)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// UserMessage renders err for the client that caused it.
func UserMessage(err error) string {
	for _, class := range []error{ErrValidation, ErrNotFound, ErrPrecondition} {
		if errors.Is(err, class) {
			return strings.TrimPrefix(err.Error(), class.Error()+": ")
		}
	}
	return "something went wrong"
}
