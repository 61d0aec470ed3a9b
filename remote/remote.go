// Package remote defines the key-path addressable live store the sync layer depends on
// and the backends implementing it.
//
// A path is a slash separated list of keys, e.g. users/{uid}/chats/{chatId}/messages.
// Values are JSON documents. Every backend reports failures as *errs.RemoteUnavailableError.
package remote

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/klipach/courier/errs"
)

// Client is the contract the sync layer requires of the remote store.
type Client interface {
	// Get reads the value at path. A missing value yields a snapshot with Exists() == false.
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set replaces the value at path.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the object at path, creating it when absent.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Push appends value under a server-generated key. Keys sort in creation order.
	Push(ctx context.Context, path string, value any) (string, error)
	// Remove deletes the subtree at path. Removing a missing path is not an error.
	Remove(ctx context.Context, path string) error
	// Subscribe delivers the current value at path, then every change to it, until the
	// returned subscription is closed or ctx is done. Callbacks of one subscription run
	// serially in emission order.
	Subscribe(ctx context.Context, path string, onValue func(Snapshot), onError func(error)) (Subscription, error)
}

// Subscription is a live feed handle. The owner must Close it on every exit path.
type Subscription interface {
	// Close stops deliveries: no callback starts after it returns. A callback already
	// running may still finish, and a callback may Close its own subscription.
	Close() error
}

// Snapshot is an immutable value read at a path.
type Snapshot struct {
	Key   string
	Value json.RawMessage
}

// NewSnapshot builds a snapshot for path from raw JSON.
func NewSnapshot(path string, raw json.RawMessage) Snapshot {
	return Snapshot{Key: lastKey(path), Value: raw}
}

// Exists reports whether the snapshot holds a non-null value.
func (s Snapshot) Exists() bool {
	return len(s.Value) > 0 && string(s.Value) != "null"
}

// Decode unmarshals the snapshot value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return nil
	}
	return json.Unmarshal(s.Value, v)
}

// Children returns the child snapshots ordered by key. Push keys sort in creation
// order, so for appended collections this is insertion order.
func (s Snapshot) Children() ([]Snapshot, error) {
	if !s.Exists() {
		return nil, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(s.Value, &m); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	children := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		children = append(children, Snapshot{Key: k, Value: m[k]})
	}
	return children, nil
}

func unavailable(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &errs.RemoteUnavailableError{Op: op, Path: path, Err: err}
}

