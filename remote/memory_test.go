package remote

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipach/courier/errs"
)

type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) onValue(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, string(s.Value))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...)
}

func TestMemoryWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		m := NewMemory()
		snap, err := m.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.False(t, snap.Exists())
	})

	t.Run("update keeps siblings", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Set(ctx, "users/u1", map[string]any{
			"username": "ana",
			"chats":    map[string]any{"c1": map[string]any{"firstName": "Bo"}},
		}))
		require.NoError(t, m.Update(ctx, "users/u1", map[string]any{
			"username":       "ana2",
			"chats/c2/image": "x.png",
		}))

		snap, err := m.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"username":"ana2","chats":{"c1":{"firstName":"Bo"},"c2":{"image":"x.png"}}}`, string(snap.Value))
	})

	t.Run("set nil removes", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Set(ctx, "a/b", 1))
		require.NoError(t, m.Set(ctx, "a/b", nil))
		snap, err := m.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, snap.Exists())
	})

	t.Run("remove missing path", func(t *testing.T) {
		m := NewMemory()
		assert.NoError(t, m.Remove(ctx, "users/u1/chats/nope"))
	})

	t.Run("remove prunes empty parents", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Set(ctx, "a/b/c", 1))
		require.NoError(t, m.Set(ctx, "a/d", 2))
		require.NoError(t, m.Remove(ctx, "a/b/c"))

		snap, err := m.Get(ctx, "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"d":2}`, string(snap.Value))
	})

	t.Run("push keeps insertion order", func(t *testing.T) {
		m := NewMemory()
		var keys []string
		for i := 0; i < 20; i++ {
			key, err := m.Push(ctx, "messages", map[string]any{"n": i})
			require.NoError(t, err)
			keys = append(keys, key)
		}

		snap, err := m.Get(ctx, "messages")
		require.NoError(t, err)
		children, err := snap.Children()
		require.NoError(t, err)
		require.Len(t, children, len(keys))
		for i, c := range children {
			assert.Equal(t, keys[i], c.Key)
		}
	})

	t.Run("value that cannot be encoded", func(t *testing.T) {
		m := NewMemory()
		err := m.Set(ctx, "a", make(chan int))
		assert.Error(t, err)
	})

	t.Run("push error is wrapped once", func(t *testing.T) {
		m := NewMemory()
		_, err := m.Push(ctx, "users/u1/chats", make(chan int))

		var remoteErr *errs.RemoteUnavailableError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, "set", remoteErr.Op)
		assert.True(t, strings.HasPrefix(remoteErr.Path, "users/u1/chats/"))
		assert.False(t, errors.As(remoteErr.Err, new(*errs.RemoteUnavailableError)))
		assert.Equal(t, 1, strings.Count(err.Error(), "remote "))
	})
}

func TestMemorySubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("initial value then changes", func(t *testing.T) {
		m := NewMemory()
		rec := &recorder{}
		sub, err := m.Subscribe(ctx, "users/u1/chats", rec.onValue, nil)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, m.Set(ctx, "users/u1/chats/c1", map[string]any{"firstName": "Bo"}))
		require.NoError(t, m.Update(ctx, "users/u1/chats/c1", map[string]any{"lastMessage": "hi"}))

		got := rec.all()
		require.Len(t, got, 3)
		assert.Equal(t, "null", got[0])
		assert.JSONEq(t, `{"c1":{"firstName":"Bo"}}`, got[1])
		assert.JSONEq(t, `{"c1":{"firstName":"Bo","lastMessage":"hi"}}`, got[2])
	})

	t.Run("unrelated and unchanged writes are not delivered", func(t *testing.T) {
		m := NewMemory()
		require.NoError(t, m.Set(ctx, "users/u1/chats/c1/firstName", "Bo"))
		rec := &recorder{}
		sub, err := m.Subscribe(ctx, "users/u1/chats", rec.onValue, nil)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, m.Set(ctx, "users/u2/chats/c1/firstName", "Al"))
		require.NoError(t, m.Set(ctx, "users/u1/chats/c1/firstName", "Bo"))
		require.NoError(t, m.Remove(ctx, "users/u1/chats/nope"))

		assert.Len(t, rec.all(), 1)
	})

	t.Run("close stops deliveries", func(t *testing.T) {
		m := NewMemory()
		rec := &recorder{}
		sub, err := m.Subscribe(ctx, "a", rec.onValue, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Subscribers())

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())
		require.NoError(t, m.Set(ctx, "a", 1))

		assert.Len(t, rec.all(), 1)
		assert.Equal(t, 0, m.Subscribers())
	})

	t.Run("context cancel closes the subscription", func(t *testing.T) {
		m := NewMemory()
		subCtx, cancel := context.WithCancel(ctx)
		_, err := m.Subscribe(subCtx, "a", func(Snapshot) {}, nil)
		require.NoError(t, err)

		cancel()
		assert.Eventually(t, func() bool { return m.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("callback may write to the store", func(t *testing.T) {
		m := NewMemory()
		rec := &recorder{}
		var once sync.Once
		sub, err := m.Subscribe(ctx, "counter", func(s Snapshot) {
			rec.onValue(s)
			once.Do(func() {
				require.NoError(t, m.Set(ctx, "counter", 1))
			})
		}, nil)
		require.NoError(t, err)
		defer sub.Close()

		assert.Equal(t, []string{"null", "1"}, rec.all())
	})
}
