package subscriber

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingChallenge is returned when a verification request carries no hub.challenge.
	ErrMissingChallenge = errors.New("subscriber: verification request lacks hub.challenge")

	// ErrMissingBody is returned when a delivery request has no body.
	ErrMissingBody = errors.New("subscriber: delivery request lacks a body")
)

// MissingParameterError is returned when a required argument is empty.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("subscriber: missing parameter %s", e.Name)
}

// SubscriptionDeniedError is returned when the hub reports hub.mode=denied.
type SubscriptionDeniedError struct {
	ID     string // correlation id, if the hub echoed it
	Topic  string
	Reason string
}

func (e *SubscriptionDeniedError) Error() string {
	return fmt.Sprintf("subscriber: subscription to topic {%s} denied by hub, reason {%s}", e.Topic, e.Reason)
}

// UnsupportedMethodError is returned for inbound requests other than GET and POST.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("subscriber: unsupported method %s", e.Method)
}

// HubRegistrationError is returned when a subscribe request fails or the hub rejects it.
// StatusCode is zero when the request never got a reply.
type HubRegistrationError struct {
	Topic      string
	StatusCode int
	Details    string
	Err        error
}

func (e *HubRegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("subscriber: subscription request for topic {%s} failed: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("subscriber: hub rejected subscription request for topic {%s}. Code {%d}, Details {%s}",
		e.Topic, e.StatusCode, e.Details)
}

func (e *HubRegistrationError) Unwrap() error {
	return e.Err
}

// HubUnregistrationError is returned when an unsubscribe request could not be delivered to the hub.
type HubUnregistrationError struct {
	ID    string
	Topic string
	Err   error
}

func (e *HubUnregistrationError) Error() string {
	return fmt.Sprintf("subscriber: unsubscription request for {%s} on topic {%s} failed: %v", e.ID, e.Topic, e.Err)
}

func (e *HubUnregistrationError) Unwrap() error {
	return e.Err
}
