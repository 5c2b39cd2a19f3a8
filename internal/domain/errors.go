package domain

import "errors"

// ErrorKind is the stable class of a failure. Transports map kinds to
// status codes and error frames.
type ErrorKind string

const (
	KindNotAuthenticated    ErrorKind = "NOT_AUTHENTICATED"
	KindNotParticipant      ErrorKind = "NOT_PARTICIPANT"
	KindSessionNotActive    ErrorKind = "SESSION_NOT_ACTIVE"
	KindTimerConflict       ErrorKind = "TIMER_CONFLICT"
	KindInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindConflict            ErrorKind = "CONFLICT"
	KindInternal            ErrorKind = "INTERNAL"
)

type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Auth errors
var (
	ErrNotAuthenticated   = newError(KindNotAuthenticated, "NOT_AUTHENTICATED", "authentication required")
	ErrInvalidCredentials = newError(KindNotAuthenticated, "INVALID_CREDENTIALS", "invalid credentials")
	ErrInvalidToken       = newError(KindNotAuthenticated, "INVALID_TOKEN", "invalid token")
	ErrUserExists         = newError(KindConflict, "USER_EXISTS", "user already exists")
	ErrUserNotFound       = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
)

// Session errors
var (
	ErrSessionNotFound        = newError(KindNotFound, "SESSION_NOT_FOUND", "session not found")
	ErrNotParticipant         = newError(KindNotParticipant, "NOT_PARTICIPANT", "not a participant of this session")
	ErrSessionNotActive       = newError(KindSessionNotActive, "SESSION_NOT_ACTIVE", "session is not active")
	ErrAlreadyEnded           = newError(KindSessionNotActive, "ALREADY_ENDED", "session already ended")
	ErrSelfSession            = newError(KindValidation, "SELF_SESSION", "cannot start a session with yourself")
	ErrDuplicateActiveSession = newError(KindConflict, "DUPLICATE_ACTIVE_SESSION", "an active session already exists for this pair")
	ErrInvalidSignal          = newError(KindValidation, "INVALID_SIGNAL", "invalid signal message")
	ErrEmptyMessage           = newError(KindValidation, "EMPTY_MESSAGE", "message is empty")
	ErrInvalidSnapshot        = newError(KindValidation, "INVALID_SNAPSHOT", "snapshot must be valid JSON")
	ErrInvalidPayload         = newError(KindValidation, "INVALID_PAYLOAD", "invalid message payload")
	ErrSettlementFailed       = newError(KindInternal, "SETTLEMENT_FAILED", "settlement failed")
)

// Timer errors
var (
	ErrAlreadyRunning = newError(KindTimerConflict, "ALREADY_RUNNING", "your timer is already running")
	ErrTimerLocked    = newError(KindTimerConflict, "TIMER_LOCKED", "the other participant is teaching")
	ErrNoActiveTimer  = newError(KindTimerConflict, "NO_ACTIVE_TIMER", "no timer is running")
	ErrNotOwner       = newError(KindTimerConflict, "NOT_OWNER", "only the teacher can stop this timer")
)

// Ledger errors
var (
	ErrInsufficientBalance    = newError(KindInsufficientBalance, "INSUFFICIENT_BALANCE", "insufficient credits")
	ErrBankInsufficient       = newError(KindInsufficientBalance, "BANK_INSUFFICIENT", "bank has insufficient credits")
	ErrBankMissing            = newError(KindInternal, "BANK_MISSING", "bank row is missing")
	ErrInvalidAmount          = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrInvalidTransactionType = newError(KindValidation, "INVALID_TRANSACTION_TYPE", "unknown transaction type")
)

// KindOf reports the kind of err, looking through wrapping. Unknown errors
// are internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf reports the machine-readable code of err.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "INTERNAL_ERROR"
}
