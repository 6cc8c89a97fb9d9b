package gemini

// ErrorKind is the classified cause of a failed provider call.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrRateLimit
	ErrServerError
	ErrNetwork
	ErrAuth
	ErrSafetyRefusal
	ErrMalformedResponse
)

var kindNames = map[ErrorKind]string{
	ErrUnknown:           "unknown",
	ErrRateLimit:         "rate limit",
	ErrServerError:       "server error",
	ErrNetwork:           "network error",
	ErrAuth:              "auth error",
	ErrSafetyRefusal:     "safety refusal",
	ErrMalformedResponse: "malformed response",
}

func (k ErrorKind) String() string { return kindNames[k] }

// Error is a classified provider failure. Retriable drives the retry
// policy: rate limits, 5xx and dropped connections are worth another
// attempt, everything else is surfaced immediately.
type Error struct {
	Kind      ErrorKind
	Message   string
	Retriable bool
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// IsRetriable implements the interface the retry controller checks.
func (e *Error) IsRetriable() bool { return e.Retriable }

func newError(kind ErrorKind, msg string, retriable bool) *Error {
	return &Error{Kind: kind, Message: msg, Retriable: retriable}
}
