package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/klipach/courier/remote"
)

// Remote wraps a remote.Client and records every call.
type Remote struct {
	next remote.Client
}

func InstrumentRemote(next remote.Client) *Remote {
	return &Remote{next: next}
}

func (r *Remote) Get(ctx context.Context, path string) (remote.Snapshot, error) {
	start := time.Now()
	snap, err := r.next.Get(ctx, path)
	observe("get", start, err)
	return snap, err
}

func (r *Remote) Set(ctx context.Context, path string, value any) error {
	start := time.Now()
	err := r.next.Set(ctx, path, value)
	observe("set", start, err)
	return err
}

func (r *Remote) Update(ctx context.Context, path string, fields map[string]any) error {
	start := time.Now()
	err := r.next.Update(ctx, path, fields)
	observe("update", start, err)
	return err
}

func (r *Remote) Push(ctx context.Context, path string, value any) (string, error) {
	start := time.Now()
	key, err := r.next.Push(ctx, path, value)
	observe("push", start, err)
	return key, err
}

func (r *Remote) Remove(ctx context.Context, path string) error {
	start := time.Now()
	err := r.next.Remove(ctx, path)
	observe("remove", start, err)
	return err
}

func (r *Remote) Subscribe(ctx context.Context, path string, onValue func(remote.Snapshot), onError func(error)) (remote.Subscription, error) {
	start := time.Now()
	sub, err := r.next.Subscribe(ctx, path, onValue, onError)
	observe("subscribe", start, err)
	if err != nil {
		return nil, err
	}
	Subscriptions.Inc()
	return &trackedSub{next: sub}, nil
}

type trackedSub struct {
	next remote.Subscription
	once sync.Once
}

func (s *trackedSub) Close() error {
	s.once.Do(Subscriptions.Dec)
	return s.next.Close()
}
