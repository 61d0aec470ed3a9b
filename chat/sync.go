package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/klipach/courier/log"
	"github.com/klipach/courier/remote"
)

// Notifier schedules a notification for a message received from a contact.
type Notifier interface {
	ScheduleMessageNotification(ctx context.Context, msg Message, from Contact) (string, error)
}

type options struct {
	now      func() time.Time
	notifier Notifier
}

// Option configures ListSync and MessageSync.
type Option func(*options)

// WithClock sets the clock used for send times and display times.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNotifier makes MessageSync schedule a notification for every message that
// arrives from the counterpart while the stream is open.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// scope holds at most one live subscription. Acquiring a new one releases the old
// one first. The lock is never held while a backend subscribes, since backends may
// deliver the first snapshot before Subscribe returns and callbacks may call back in.
type scope struct {
	mu        sync.Mutex
	sub       remote.Subscription
	gen       uint64
	acquiring bool
}

func (s *scope) replace(acquire func() (remote.Subscription, error)) error {
	s.mu.Lock()
	old := s.sub
	s.sub = nil
	s.gen++
	gen := s.gen
	s.acquiring = true
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	sub, err := acquire()

	s.mu.Lock()
	if s.gen != gen {
		// released or replaced while subscribing
		s.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		return err
	}
	s.acquiring = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.sub = sub
	s.mu.Unlock()
	return nil
}

func (s *scope) release() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.gen++
	s.acquiring = false
	s.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (s *scope) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil || s.acquiring
}

func reportError(ctx context.Context, onError func(error), msg string, err error) {
	log.LoggerFromContext(ctx).Error(msg, slog.String(log.ErrorMsgLogField, err.Error()))
	if onError != nil {
		onError(err)
	}
}

func chatsPath(userID string) (string, error) {
	return remote.Join("users", userID, "chats")
}

func chatPath(userID, chatID string) (string, error) {
	return remote.Join("users", userID, "chats", chatID)
}

func messagesPath(userID, chatID string) (string, error) {
	return remote.Join("users", userID, "chats", chatID, "messages")
}
