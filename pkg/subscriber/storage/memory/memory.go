// Package memory is the default Storage implementation: a mutex-guarded map keyed by subscription id.
package memory

import (
	"context"
	"sync"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

// Memory keeps subscriptions in a map. The zero value is not usable, call New.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]storage.Subscription
}

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{
		subs: make(map[string]storage.Subscription),
	}
}

// Create generates a new subscription and stores it.
func (m *Memory) Create(ctx context.Context, topic, eventName string) (storage.Subscription, error) {
	for {
		sub, err := storage.NewSubscription(topic, eventName)
		if err != nil {
			return storage.Subscription{}, err
		}
		err = m.Put(ctx, sub)
		if err == storage.ErrDuplicateID {
			continue
		}
		if err != nil {
			return storage.Subscription{}, err
		}
		return sub, nil
	}
}

// Put stores sub, refusing to overwrite a live id.
func (m *Memory) Put(ctx context.Context, sub storage.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subs[sub.ID]; exists {
		return storage.ErrDuplicateID
	}
	m.subs[sub.ID] = sub
	return nil
}

// Remove deletes the subscription, if present.
func (m *Memory) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.subs, id)
	m.mu.Unlock()
	return nil
}

// Clear drops every subscription.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.subs = make(map[string]storage.Subscription)
	m.mu.Unlock()
	return nil
}

// Get looks up a subscription by id.
func (m *Memory) Get(ctx context.Context, id string) (storage.Subscription, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	return sub, ok, nil
}

// All returns a copy of the current subscriptions.
func (m *Memory) All(ctx context.Context) ([]storage.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]storage.Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	return subs, nil
}

func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs), nil
}

func (m *Memory) Close() error {
	return nil
}
