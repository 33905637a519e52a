package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the category of a failed request. Kind values are errors
// themselves, so errors.Is(err, provider.KindRateLimited) works on any
// error chain that contains an *Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNetwork
	KindTimeout
	KindCanceled
	KindRateLimited
	KindAccessDenied
	KindNotFound
	KindServer
	KindDecode
	KindNoData
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindInvalidInput: "invalid input",
	KindNetwork:      "network error",
	KindTimeout:      "timeout",
	KindCanceled:     "canceled",
	KindRateLimited:  "rate limited",
	KindAccessDenied: "access denied",
	KindNotFound:     "not found",
	KindServer:       "server error",
	KindDecode:       "decode error",
	KindNoData:       "no data",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Error() string { return k.String() }

// Transient reports whether asking again, later or elsewhere, may succeed.
func (k Kind) Transient() bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimited, KindAccessDenied, KindServer, KindDecode, KindNoData:
		return true
	}
	return false
}

// Error is a classified failure of a provider operation.
type Error struct {
	Kind     Kind
	Provider string
	Op       string
	// Status is the HTTP status code, zero when no response was received.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	switch {
	case e.Provider != "" && e.Op != "":
		return e.Provider + " " + e.Op + ": " + msg
	case e.Provider != "":
		return e.Provider + ": " + msg
	case e.Op != "":
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// NewError builds a classified error.
func NewError(kind Kind, providerName, op string, err error) *Error {
	return &Error{Kind: kind, Provider: providerName, Op: op, Err: err}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, providerName, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: providerName, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies any error. Errors not produced by this package are
// classified by inspecting context and network errors in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return KindNetwork
	}
	return KindUnknown
}

// KindForStatus maps a non-2xx HTTP status to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindInvalidInput
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAccessDenied
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	}
	return KindServer
}
