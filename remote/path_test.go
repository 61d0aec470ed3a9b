package remote

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipach/courier/errs"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		expected string
		wantErr  bool
	}{
		{name: "valid keys", keys: []string{"users", "u1", "chats"}, expected: "users/u1/chats"},
		{name: "single key", keys: []string{"usernames"}, expected: "usernames"},
		{name: "empty key", keys: []string{"users", ""}, wantErr: true},
		{name: "blank key", keys: []string{"users", "  "}, wantErr: true},
		{name: "key with slash", keys: []string{"users", "a/b"}, wantErr: true},
		{name: "key with dot", keys: []string{"users", "a.b"}, wantErr: true},
		{name: "key with brackets", keys: []string{"users", "a[0]"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Join(tt.keys...)
			if tt.wantErr {
				var verr *errs.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "path", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewKeySortsInCreationOrder(t *testing.T) {
	keys := make([]string, 200)
	for i := range keys {
		keys[i] = NewKey()
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	assert.Equal(t, keys, sorted)
}

func TestRelated(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"users/u1/chats", "users/u1/chats", true},
		{"users/u1/chats", "users/u1/chats/c1/messages/m1", true},
		{"users/u1/chats/c1", "users/u1", true},
		{"users/u1/chats", "users/u10/chats", false},
		{"users/u1/chats", "usernames/ana", false},
		{"", "anything", true},
		{"/users/u1/", "users/u1", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, related(tt.a, tt.b))
		})
	}
}

func TestSnapshot(t *testing.T) {
	t.Run("missing value", func(t *testing.T) {
		snap := NewSnapshot("users/u1/chats", []byte("null"))
		assert.False(t, snap.Exists())
		assert.Equal(t, "chats", snap.Key)

		children, err := snap.Children()
		require.NoError(t, err)
		assert.Empty(t, children)

		var v map[string]any
		require.NoError(t, snap.Decode(&v))
		assert.Nil(t, v)
	})

	t.Run("children ordered by key", func(t *testing.T) {
		snap := NewSnapshot("chats", []byte(`{"b":{"n":2},"a":{"n":1},"c":{"n":3}}`))
		children, err := snap.Children()
		require.NoError(t, err)
		require.Len(t, children, 3)
		assert.Equal(t, "a", children[0].Key)
		assert.Equal(t, "b", children[1].Key)
		assert.Equal(t, "c", children[2].Key)
		assert.JSONEq(t, `{"n":2}`, string(children[1].Value))
	})

	t.Run("children of a scalar", func(t *testing.T) {
		_, err := NewSnapshot("x", []byte(`"text"`)).Children()
		assert.Error(t, err)
	})
}
