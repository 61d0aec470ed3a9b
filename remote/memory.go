package remote

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process store with the same semantics as the hosted backends.
// It backs local development and tests. Subscribers are notified synchronously
// from the writing goroutine after the write is applied.
type Memory struct {
	mu      sync.Mutex
	root    map[string]any
	version uint64
	subs    map[*memorySub]struct{}
}

type memorySub struct {
	path    string
	onValue func(Snapshot)
	stop    func() bool
	release func(*memorySub)

	mu        sync.Mutex
	queue     []queued
	running   bool
	version   uint64
	last      string
	delivered bool
	closed    bool
}

type queued struct {
	version uint64
	raw     string
}

type delivery struct {
	sub     *memorySub
	version uint64
	raw     []byte
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		root: map[string]any{},
		subs: map[*memorySub]struct{}{},
	}
}

func (m *Memory) Get(_ context.Context, path string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(m.getLocked(splitPath(path)))
	if err != nil {
		return Snapshot{}, unavailable("get", path, err)
	}
	return NewSnapshot(path, raw), nil
}

func (m *Memory) Set(_ context.Context, path string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return unavailable("set", path, err)
	}
	m.mu.Lock()
	m.setLocked(splitPath(path), v)
	pending := m.changedLocked(path)
	m.mu.Unlock()
	deliver(pending)
	return nil
}

func (m *Memory) Update(_ context.Context, path string, fields map[string]any) error {
	normalized := make(map[string]any, len(fields))
	for k, f := range fields {
		v, err := normalize(f)
		if err != nil {
			return unavailable("update", path, err)
		}
		normalized[k] = v
	}
	keys := splitPath(path)
	m.mu.Lock()
	for k, v := range normalized {
		m.setLocked(append(keys[:len(keys):len(keys)], splitPath(k)...), v)
	}
	pending := m.changedLocked(path)
	m.mu.Unlock()
	deliver(pending)
	return nil
}

func (m *Memory) Push(ctx context.Context, path string, value any) (string, error) {
	key := NewKey()
	if err := m.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	m.removeLocked(splitPath(path))
	pending := m.changedLocked(path)
	m.mu.Unlock()
	deliver(pending)
	return nil
}

// Subscribe never reports errors through onError: the in-process store cannot fail.
func (m *Memory) Subscribe(ctx context.Context, path string, onValue func(Snapshot), _ func(error)) (Subscription, error) {
	sub := &memorySub{
		path:    path,
		onValue: onValue,
		release: m.release,
	}
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.version++
	raw, err := json.Marshal(m.getLocked(splitPath(path)))
	version := m.version
	m.mu.Unlock()
	if err != nil {
		m.release(sub)
		return nil, unavailable("subscribe", path, err)
	}
	sub.stop = context.AfterFunc(ctx, func() { _ = sub.Close() })
	sub.deliver(version, raw)
	return sub, nil
}

// Subscribers reports the number of live subscriptions, for leak checks in tests.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Memory) release(sub *memorySub) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

func (m *Memory) changedLocked(path string) []delivery {
	m.version++
	var pending []delivery
	for sub := range m.subs {
		if !related(sub.path, path) {
			continue
		}
		raw, err := json.Marshal(m.getLocked(splitPath(sub.path)))
		if err != nil {
			continue
		}
		pending = append(pending, delivery{sub: sub, version: m.version, raw: raw})
	}
	return pending
}

func deliver(pending []delivery) {
	for _, d := range pending {
		d.sub.deliver(d.version, d.raw)
	}
}

// deliver hands a snapshot to the subscriber unless a newer one was already
// delivered or the value did not change. Deliveries queue up while a callback
// runs, so a callback may write to the store without deadlocking.
func (s *memorySub) deliver(version uint64, raw []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, queued{version: version, raw: string(raw)})
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for len(s.queue) > 0 && !s.closed {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if next.version <= s.version {
			continue
		}
		s.version = next.version
		if s.delivered && s.last == next.raw {
			continue
		}
		s.delivered = true
		s.last = next.raw
		s.mu.Unlock()
		s.onValue(NewSnapshot(s.path, []byte(next.raw)))
		s.mu.Lock()
	}
	s.queue = nil
	s.running = false
	s.mu.Unlock()
}

// Close stops deliveries. A callback already running finishes; no new one starts.
func (s *memorySub) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
	s.release(s)
	return nil
}

func (m *Memory) getLocked(keys []string) any {
	var node any = m.root
	for _, k := range keys {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = obj[k]
		if !ok {
			return nil
		}
	}
	if obj, ok := node.(map[string]any); ok && len(obj) == 0 {
		return nil
	}
	return node
}

func (m *Memory) setLocked(keys []string, v any) {
	if v == nil {
		m.removeLocked(keys)
		return
	}
	if len(keys) == 0 {
		obj, ok := v.(map[string]any)
		if !ok {
			obj = map[string]any{}
		}
		m.root = obj
		return
	}
	node := m.root
	for _, k := range keys[:len(keys)-1] {
		child, ok := node[k].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[k] = child
		}
		node = child
	}
	node[keys[len(keys)-1]] = v
}

func (m *Memory) removeLocked(keys []string) {
	if len(keys) == 0 {
		m.root = map[string]any{}
		return
	}
	chain := []map[string]any{m.root}
	node := m.root
	for _, k := range keys[:len(keys)-1] {
		child, ok := node[k].(map[string]any)
		if !ok {
			return
		}
		chain = append(chain, child)
		node = child
	}
	delete(node, keys[len(keys)-1])
	// empty parents disappear, like in the hosted store
	for i := len(chain) - 1; i > 0; i-- {
		if len(chain[i]) > 0 {
			break
		}
		delete(chain[i-1], keys[i-1])
	}
}

// normalize turns any JSON-encodable value into the generic form stored in the tree.
func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok && len(obj) == 0 {
		return nil, nil
	}
	return v, nil
}
