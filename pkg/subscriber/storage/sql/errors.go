package sql

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedID is returned when a subscription without an id is stored
	ErrMalformedID = errors.New("SQL storage: subscription id provided is invalid, subscription was not stored")

	// ErrMalformedTopic is returned when a subscription without a topic is stored
	ErrMalformedTopic = errors.New("SQL storage: topic provided is invalid, subscription was not stored")
)

// ErrMalformedTime is returned when a stored timestamp could not be parsed.
type ErrMalformedTime struct {
	badTime string
}

func (e ErrMalformedTime) Error() string {
	return fmt.Sprintf("SQL storage: Stored time value {%s} could not be parsed", e.badTime)
}
