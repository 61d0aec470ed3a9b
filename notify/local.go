package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// LocalTray is an in-process tray. It keeps scheduled payloads and registered
// channels, and lets a caller simulate a tap.
type LocalTray struct {
	mu        sync.Mutex
	scheduled map[string]Payload
	order     []string
	channels  map[string]ChannelConfig
	last      []byte
}

func NewLocalTray() *LocalTray {
	return &LocalTray{
		scheduled: map[string]Payload{},
		channels:  map[string]ChannelConfig{},
	}
}

func (t *LocalTray) Schedule(_ context.Context, p Payload) (string, error) {
	id := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scheduled[id] = p
	t.order = append(t.order, id)
	return id, nil
}

func (t *LocalTray) SetChannel(_ context.Context, c ChannelConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channels[c.ID] = c
	return nil
}

func (t *LocalTray) LastResponse(context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, nil
}

// Tap records a tap on the notification id and returns the tray response for it.
func (t *LocalTray) Tap(id string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.scheduled[id]
	if !ok {
		return nil, fmt.Errorf("notification %s not found", id)
	}
	raw, err := EncodeTapped(p)
	if err != nil {
		return nil, err
	}
	t.last = raw
	return raw, nil
}

// Scheduled returns the scheduled payloads in scheduling order.
func (t *LocalTray) Scheduled() []Payload {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Payload, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.scheduled[id])
	}
	return out
}

// Channel returns a registered channel.
func (t *LocalTray) Channel(id string) (ChannelConfig, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.channels[id]
	return c, ok
}
