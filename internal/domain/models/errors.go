package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind buckets upstream failures for retry decisions and user messages.
type ErrorKind string

const (
	ErrKindNetwork   ErrorKind = "network"
	ErrKindBlocked   ErrorKind = "blocked"
	ErrKindRateLimit ErrorKind = "rate_limit"
	ErrKindServer    ErrorKind = "server"
	ErrKindMalformed ErrorKind = "malformed"
	ErrKindUnknown   ErrorKind = "unknown"
)

// SourceError is a venue-level failure from the market data source.
type SourceError struct {
	Kind   ErrorKind
	Venue  string
	Status int
	Msg    string
	Err    error
}

func (e *SourceError) Error() string {
	b := strings.Builder{}
	b.WriteString(string(e.Kind))
	if e.Venue != "" {
		b.WriteString(" (" + e.Venue + ")")
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Status > 0 {
		b.WriteString(fmt.Sprintf(" [status %d]", e.Status))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Retryable is true only for transport and server failures.
func (e *SourceError) Retryable() bool {
	return e.Kind == ErrKindNetwork || e.Kind == ErrKindServer
}

func NewSourceError(kind ErrorKind, venue, msg string, err error) *SourceError {
	return &SourceError{Kind: kind, Venue: venue, Msg: msg, Err: err}
}

// ClassifyError prefers the typed kind and falls back to message inspection.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "blocked", "restricted", "forbidden", "403", "451", "unavailable for legal"):
		return ErrKindBlocked
	case containsAny(msg, "rate limit", "too many requests", "429", "418"):
		return ErrKindRateLimit
	case containsAny(msg, "500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable"):
		return ErrKindServer
	case containsAny(msg, "malformed", "cannot unmarshal", "invalid character", "unexpected end of json", "missing field"):
		return ErrKindMalformed
	case containsAny(msg, "network", "connection refused", "connection reset", "no such host", "timeout", "eof", "failed to fetch"):
		return ErrKindNetwork
	}
	return ErrKindUnknown
}

// IsInterfaceMismatch detects errors caused by a client built against an older data shape.
func IsInterfaceMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return containsAny(msg,
		"is not a function",
		"cannot read propert",
		"unknown field",
		"json: cannot unmarshal",
		"interface mismatch",
	)
}

// UserMessage is the human-readable status text for an error kind.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case ErrKindNetwork:
		return "Unable to reach the exchange. Check your connection and retry."
	case ErrKindBlocked:
		return "The exchange blocked this request from your region. The spot fallback may still work."
	case ErrKindRateLimit:
		return "Rate limited by the exchange. Data will refresh on the next cycle."
	case ErrKindServer:
		return "The exchange returned a server error. Retrying shortly."
	case ErrKindMalformed:
		return "The exchange returned data in an unexpected format."
	default:
		return "Unexpected error while loading market data."
	}
}

// Suggestion returns a follow-up action for the status affordance, if any.
func Suggestion(err error) string {
	if IsInterfaceMismatch(err) {
		return "Clear the cache and reload the dashboard."
	}
	if ClassifyError(err) == ErrKindBlocked {
		return "Enable the backend proxy fallback."
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
