package domain

import (
	"errors"
	"fmt"
)

// EngineError is the unified error type for the battle engine.
// Each error has a numeric code and human-readable message. Errors created
// with WrapEngineError keep their cause for errors.Is/As.
type EngineError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("engine error %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an EngineError with the same code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: msg, Cause: cause}
}

// ---- Configuration errors (-32010 to -32039) ----

var (
	ErrLevelNotFound = &EngineError{Code: -32010, Message: "level not found"}
	ErrConfigInvalid = &EngineError{Code: -32011, Message: "invalid configuration"}
	ErrInvalidMode   = &EngineError{Code: -32012, Message: "invalid battle mode"}
)

// ---- Session state invariant errors (-32040 to -32069) ----

var (
	ErrNoOpponentLine        = &EngineError{Code: -32040, Message: "session has no opponent line to respond to"}
	ErrInvalidTransition     = &EngineError{Code: -32041, Message: "invalid session transition"}
	ErrAutoRunDidNotComplete = &EngineError{Code: -32042, Message: "auto run exited without completing the session"}
	ErrScoreOutOfRange       = &EngineError{Code: -32043, Message: "score breakdown outside dimension caps"}
	ErrReportNotReady        = &EngineError{Code: -32044, Message: "session has not been settled yet"}
	ErrOptimisticLock        = &EngineError{Code: -32045, Message: "optimistic lock conflict: session was modified concurrently"}
)

// ---- Collaborator errors (-32070 to -32099) ----

var (
	ErrCollaboratorFailed = &EngineError{Code: -32070, Message: "text generation failed"}
)

// ---- Access / guard errors (-32100 to -32129) ----

var (
	ErrSessionNotFound   = &EngineError{Code: -32100, Message: "session not found"}
	ErrUserNotFound      = &EngineError{Code: -32101, Message: "user not found"}
	ErrProgressNotFound  = &EngineError{Code: -32102, Message: "user progress not found"}
	ErrLevelLocked       = &EngineError{Code: -32103, Message: "level is locked"}
	ErrForbidden         = &EngineError{Code: -32104, Message: "resource belongs to another user"}
	ErrRateLimitExceeded = &EngineError{Code: -32105, Message: "rate limit exceeded"}
	ErrUnauthenticated   = &EngineError{Code: -32106, Message: "caller identity missing"}
)

// ---- Store errors (-32130 to -32159) ----

var (
	ErrStoreInit       = &EngineError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -32131, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -32132, Message: "store write failed"}
	ErrSchemaMigration = &EngineError{Code: -32133, Message: "schema migration failed"}
)

// IsRetryable reports whether err is a transient failure that the caller may
// retry from scratch (re-open or re-advance).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCollaboratorFailed) || errors.Is(err, ErrOptimisticLock)
}
