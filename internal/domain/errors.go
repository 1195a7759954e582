package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks invalid or missing startup configuration.
	ErrConfig = errors.New("weather: invalid configuration")
	// ErrConnection marks a broker connection that could not be established
	// within the retry budget.
	ErrConnection = errors.New("weather: broker connection failed")
	// ErrPublish marks a record the broker did not accept.
	ErrPublish = errors.New("weather: publish failed")
)

// FetchErrorKind classifies why a provider fetch produced no record.
type FetchErrorKind string

const (
	NetworkFailure    FetchErrorKind = "network_failure"
	MalformedResponse FetchErrorKind = "malformed_response"
)

// FetchError is returned by fetchers and by BuildRecord.
type FetchError struct {
	Kind FetchErrorKind
	Msg  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone: errors.Is(err, &FetchError{Kind: NetworkFailure}).
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func NewNetworkFailure(msg string, err error) *FetchError {
	return &FetchError{Kind: NetworkFailure, Msg: msg, Err: err}
}

func NewMalformedResponse(msg string, err error) *FetchError {
	return &FetchError{Kind: MalformedResponse, Msg: msg, Err: err}
}

// KindOf reports the FetchErrorKind carried by err, or "" if none.
func KindOf(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
