package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateID is returned by Put when a live subscription already holds the id.
var ErrDuplicateID = errors.New("storage: subscription id already in use")

// Subscription is the unit of tracked interest in a topic.
type Subscription struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	EventName    string    `json:"eventName"`
	Secret       string    `json:"-"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

// String keeps the secret out of any formatted output.
func (s Subscription) String() string {
	return fmt.Sprintf("Subscription{ID: %s, Topic: %s, EventName: %s, SubscribedAt: %s}",
		s.ID, s.Topic, s.EventName, s.SubscribedAt.Format(time.RFC3339))
}

// Storage is the root interface for this package, and holds the live subscriptions.
// Implementations must be safe for concurrent use.
type Storage interface {
	/* Commands */

	// Create generates a fresh subscription for the topic and stores it.
	Create(ctx context.Context, topic, eventName string) (Subscription, error)

	// Put stores a subscription built by NewSubscription.
	// It fails with ErrDuplicateID if the id is already live.
	Put(ctx context.Context, sub Subscription) error

	// Remove deletes the subscription with the given id. Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error

	// Clear removes every subscription.
	Clear(ctx context.Context) error

	/* Queries */

	// Get returns the subscription with the given id, and whether it exists.
	Get(ctx context.Context, id string) (Subscription, bool, error)

	// All returns a snapshot of every live subscription, in no particular order.
	All(ctx context.Context) ([]Subscription, error)

	// Len returns the number of live subscriptions.
	Len(ctx context.Context) (int, error)

	Close() error
}

// NewSubscription builds a subscription with a fresh id and secret, without storing it.
func NewSubscription(topic, eventName string) (Subscription, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Subscription{}, fmt.Errorf("cannot generate subscription id: %w", err)
	}
	secret, err := GenerateSecret()
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{
		ID:           id.String(),
		Topic:        topic,
		EventName:    eventName,
		Secret:       secret,
		SubscribedAt: time.Now(),
	}, nil
}

// GenerateSecret returns a 32-byte (64 chars) random hex string.
func GenerateSecret() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("cannot generate secret: %w", err)
	}
	return hex.EncodeToString(secret), nil
}
