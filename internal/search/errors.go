package search

import (
	"errors"
	"fmt"
)

// Kind classifies a failed search.
type Kind int

const (
	KindNetwork Kind = iota
	KindValidation
	KindAuth
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "network"
	}
}

// User facing messages.
const (
	MsgEmptyQuery = "Please enter a search term"
	MsgAuth       = "Invalid API key."
	MsgRateLimit  = "Rate limit exceeded. Please try again later."
	MsgNetwork    = "Failed to fetch images. Please try again."
	MsgNoResults  = "No images found."
)

// ErrEmptyQuery is returned, wrapped in an *Error, for blank queries.
var ErrEmptyQuery = errors.New("empty query")

// Error is a search failure. Status is the HTTP status when the API
// answered, zero otherwise.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("search %s error (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("search %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the line shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if !errors.As(err, &se) {
		return MsgNetwork
	}
	switch se.Kind {
	case KindValidation:
		return MsgEmptyQuery
	case KindAuth:
		return MsgAuth
	case KindRateLimit:
		return MsgRateLimit
	default:
		return MsgNetwork
	}
}

// KindOf reports the Kind of err, defaulting to KindNetwork.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNetwork
}
