package weather

import (
	"errors"
	"fmt"
)

var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// ErrorKind classifies a failed fetch
type ErrorKind int

const (
	NetworkFailure ErrorKind = iota + 1
	MalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkFailure:
		return "network_failure"
	case MalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// FetchError is returned by Lookup and delivered by Fetch when a fetch fails.
// errors.Is matches ErrNetworkFailure or ErrMalformedResponse according to Kind.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *FetchError) sentinel() error {
	if e.Kind == MalformedResponse {
		return ErrMalformedResponse
	}
	return ErrNetworkFailure
}

func networkFailure(err error) error {
	return &FetchError{Kind: NetworkFailure, Err: err}
}

func malformedResponse(format string, args ...any) error {
	return &FetchError{Kind: MalformedResponse, Err: fmt.Errorf(format, args...)}
}
