// Package storagetest holds the behaviour every storage.Storage implementation must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
)

// Run exercises a fresh store from newStorage against the storage.Storage contract.
func Run(t *testing.T, newStorage func(t *testing.T) storage.Storage) {
	ctx := context.Background()

	t.Run("Create then Get", func(t *testing.T) {
		s := newStorage(t)
		sub, err := s.Create(ctx, "http://example.com/topic", "follows")
		require.NoError(t, err)
		assert.NotEmpty(t, sub.ID)
		assert.NotEmpty(t, sub.Secret)
		assert.False(t, sub.SubscribedAt.IsZero())

		got, ok, err := s.Get(ctx, sub.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, sub.ID, got.ID)
		assert.Equal(t, "http://example.com/topic", got.Topic)
		assert.Equal(t, "follows", got.EventName)
		assert.Equal(t, sub.Secret, got.Secret)
		assert.True(t, sub.SubscribedAt.Equal(got.SubscribedAt))
	})

	t.Run("Get unknown id", func(t *testing.T) {
		s := newStorage(t)
		_, ok, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Put refuses a live id", func(t *testing.T) {
		s := newStorage(t)
		sub, err := storage.NewSubscription("http://example.com/topic", "follows")
		require.NoError(t, err)
		require.NoError(t, s.Put(ctx, sub))

		other := sub
		other.Topic = "http://example.com/other"
		assert.Equal(t, storage.ErrDuplicateID, s.Put(ctx, other))

		got, _, err := s.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "http://example.com/topic", got.Topic)
	})

	t.Run("Remove is idempotent", func(t *testing.T) {
		s := newStorage(t)
		sub, err := s.Create(ctx, "http://example.com/topic", "follows")
		require.NoError(t, err)

		require.NoError(t, s.Remove(ctx, sub.ID))
		require.NoError(t, s.Remove(ctx, sub.ID))
		require.NoError(t, s.Remove(ctx, "never-existed"))

		_, ok, err := s.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("All and Clear", func(t *testing.T) {
		s := newStorage(t)
		ids := make(map[string]struct{})
		for i := 0; i < 10; i++ {
			sub, err := s.Create(ctx, fmt.Sprintf("http://example.com/topic/%d", i), "ev")
			require.NoError(t, err)
			ids[sub.ID] = struct{}{}
		}
		require.Len(t, ids, 10)

		all, err := s.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 10)
		for _, sub := range all {
			assert.Contains(t, ids, sub.ID)
		}

		n, err := s.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, n)

		require.NoError(t, s.Clear(ctx))
		n, err = s.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Parallel creates never collide", func(t *testing.T) {
		s := newStorage(t)
		var wg sync.WaitGroup
		ids := make(chan string, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sub, err := s.Create(ctx, "http://example.com/topic", "ev")
				if err != nil {
					t.Error(err)
					return
				}
				ids <- sub.ID
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]struct{})
		for id := range ids {
			_, dup := seen[id]
			assert.False(t, dup, "duplicate id %v", id)
			seen[id] = struct{}{}
		}
		n, err := s.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, n)
	})
}
