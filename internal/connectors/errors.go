package connectors

import (
	"fmt"
	"time"
)

// Kind tags the failure class of a connector error so callers can tell a
// transient failure from a structural one without string matching.
type Kind int

const (
	// KindRateLimit means quota is exhausted until ResetAt.
	KindRateLimit Kind = iota
	// KindAuthFailed means the platform rejected the credentials at
	// request time.
	KindAuthFailed
	// KindInvalidCredentials means the configured credentials are malformed
	// or missing.
	KindInvalidCredentials
	// KindNetwork covers transport failures: DNS, TLS, timeouts.
	KindNetwork
	// KindAPI is any non-success HTTP status other than a not-found on a
	// single-item lookup; Code carries the raw status.
	KindAPI
	// KindParse means a present payload could not be decoded.
	KindParse
	// KindConfig marks operations the platform's tier structurally cannot
	// perform, or missing configuration.
	KindConfig
	// KindGeneric is an unimplemented or placeholder capability.
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindAuthFailed:
		return "auth_failed"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	case KindParse:
		return "parse"
	case KindConfig:
		return "config"
	default:
		return "generic"
	}
}

// Error is the single error type returned by connectors. The Kind tag plus
// the optional Code/ResetAt payload replace a per-variant type hierarchy;
// the originating cause is wrapped and reachable via errors.Unwrap.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	ResetAt time.Time
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRateLimit:
		return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
	case KindAPI:
		return fmt.Sprintf("api error: %d - %s", e.Code, e.Message)
	case KindInvalidCredentials:
		return "invalid api credentials"
	default:
		if e.Err != nil && e.Message == "" {
			return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a connector Error with the given kind.
func IsKind(err error, kind Kind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}

func rateLimitError(resetAt time.Time) *Error {
	return &Error{Kind: KindRateLimit, ResetAt: resetAt}
}

func authError(message string) *Error {
	return &Error{Kind: KindAuthFailed, Message: message}
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

func apiError(code int, message string) *Error {
	return &Error{Kind: KindAPI, Code: code, Message: message}
}

func parseError(err error) *Error {
	return &Error{Kind: KindParse, Err: err}
}

func configError(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

func genericError(message string) *Error {
	return &Error{Kind: KindGeneric, Message: message}
}
