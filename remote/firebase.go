package remote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"firebase.google.com/go/v4/db"
)

// DefaultPollInterval is how often a Firebase subscription asks for a changed value.
const DefaultPollInterval = 2 * time.Second

// Firebase is a Client on the Firebase Realtime Database.
//
// The Admin SDK has no streaming listener, so subscriptions poll with ETag
// conditional reads: the server answers "not modified" until the value changes,
// and only changed values are delivered.
type Firebase struct {
	client   *db.Client
	interval time.Duration
}

// NewFirebase wraps a Realtime Database client. A non-positive interval uses DefaultPollInterval.
func NewFirebase(client *db.Client, interval time.Duration) *Firebase {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Firebase{client: client, interval: interval}
}

func (f *Firebase) Get(ctx context.Context, path string) (Snapshot, error) {
	var raw json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &raw); err != nil {
		return Snapshot{}, unavailable("get", path, err)
	}
	return NewSnapshot(path, raw), nil
}

func (f *Firebase) Set(ctx context.Context, path string, value any) error {
	return unavailable("set", path, f.client.NewRef(path).Set(ctx, value))
}

func (f *Firebase) Update(ctx context.Context, path string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return unavailable("update", path, f.client.NewRef(path).Update(ctx, fields))
}

func (f *Firebase) Push(ctx context.Context, path string, value any) (string, error) {
	ref, err := f.client.NewRef(path).Push(ctx, value)
	if err != nil {
		return "", unavailable("push", path, err)
	}
	return ref.Key, nil
}

func (f *Firebase) Remove(ctx context.Context, path string) error {
	return unavailable("remove", path, f.client.NewRef(path).Delete(ctx))
}

func (f *Firebase) Subscribe(ctx context.Context, path string, onValue func(Snapshot), onError func(error)) (Subscription, error) {
	ref := f.client.NewRef(path)
	var raw json.RawMessage
	etag, err := ref.GetWithETag(ctx, &raw)
	if err != nil {
		return nil, unavailable("subscribe", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &pollSub{cancel: cancel}
	sub.emit(func() { onValue(NewSnapshot(path, raw)) })

	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var next json.RawMessage
			changed, newETag, err := ref.GetIfChanged(ctx, etag, &next)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				// keep polling: a transient failure must not end the feed
				sub.emit(func() {
					if onError != nil {
						onError(unavailable("subscribe", path, err))
					}
				})
				continue
			}
			if !changed {
				continue
			}
			etag = newETag
			sub.emit(func() { onValue(NewSnapshot(path, next)) })
		}
	}()
	return sub, nil
}

// pollSub is a subscription driven by a single polling goroutine. Close does not
// wait for a callback in progress.
type pollSub struct {
	cancel context.CancelFunc
	closed atomic.Bool
	once   sync.Once
}

func (s *pollSub) emit(fn func()) {
	if s.closed.Load() {
		return
	}
	fn()
}

func (s *pollSub) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
	return nil
}
