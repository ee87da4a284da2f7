package forgeapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v68/github"
)

// ErrorKind is the closed enum every Gateway call's failure is classified
// into (spec §4.1, §7). Callers switch on Kind, not on the underlying
// transport error.
type ErrorKind string

const (
	AuthenticationFailed ErrorKind = "AuthenticationFailed"
	RateLimitExceeded    ErrorKind = "RateLimitExceeded"
	NotFound             ErrorKind = "NotFound"
	NetworkError         ErrorKind = "NetworkError"
	InvalidResponse      ErrorKind = "InvalidResponse"
)

// Error is the Gateway's classified error type, carrying the original
// transport error for logging without forcing callers to inspect it.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("forge: %s: %s (retry after %v)", e.Kind, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("forge: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify maps a go-github / transport error into the closed ErrorKind
// enum. It never returns nil for a non-nil input.
func classify(err error) *Error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &Error{
			Kind:       RateLimitExceeded,
			StatusCode: http.StatusForbidden,
			RetryAfter: time.Until(rateErr.Rate.Reset.Time),
			Message:    "forge rate limit exceeded",
			Err:        err,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		retryAfter := 60 * time.Second
		if abuseErr.RetryAfter != nil {
			retryAfter = *abuseErr.RetryAfter
		}
		return &Error{
			Kind:       RateLimitExceeded,
			StatusCode: http.StatusForbidden,
			RetryAfter: retryAfter,
			Message:    "forge abuse-detection throttling",
			Err:        err,
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Kind: AuthenticationFailed, StatusCode: respErr.Response.StatusCode, Message: respErr.Message, Err: err}
		case http.StatusNotFound:
			return &Error{Kind: NotFound, StatusCode: respErr.Response.StatusCode, Message: respErr.Message, Err: err}
		default:
			return &Error{Kind: InvalidResponse, StatusCode: respErr.Response.StatusCode, Message: respErr.Message, Err: err}
		}
	}

	return &Error{Kind: NetworkError, Message: err.Error(), Err: err}
}
