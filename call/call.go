// Package call starts and ends outgoing call attempts: it notifies, navigates to the
// call screen and remembers the attempt in progress. There is no media transport.
package call

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klipach/courier/chat"
	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/notify"
)

// Contact is the callee. FirstName and LastName win over DisplayName.
type Contact struct {
	ID          string
	FirstName   string
	LastName    string
	DisplayName string
	Image       chat.ImageRef
}

// Names returns first and last name, splitting DisplayName at the first whitespace
// run when the explicit names are empty.
func (c Contact) Names() (string, string) {
	if c.FirstName != "" || c.LastName != "" {
		return c.FirstName, c.LastName
	}
	fields := strings.Fields(c.DisplayName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.DisplayName), fields[0]))
	return fields[0], rest
}

// Session is a call attempt.
type Session struct {
	ID         string            `json:"id"`
	Contact    chat.Contact      `json:"contact"`
	Type       notify.CallType   `json:"callType"`
	StartedAt  time.Time         `json:"startedAt"`
	Navigation notify.Navigation `json:"navigation"`
	// Notified is false when the call notification could not be scheduled.
	Notified bool `json:"notified"`
}

// Notifier schedules the incoming call notification.
type Notifier interface {
	ScheduleCallNotification(ctx context.Context, contact chat.Contact, callType notify.CallType) (string, error)
}

type Controller struct {
	notifier Notifier
	nav      notify.Navigator
	now      func() time.Time

	mu      sync.Mutex
	current *Session
}

func NewController(notifier Notifier, nav notify.Navigator) *Controller {
	return &Controller{notifier: notifier, nav: nav, now: time.Now}
}

// InitiateCall validates the call type, schedules the call notification and opens
// the call screen. A failed notification does not fail the call.
func (c *Controller) InitiateCall(ctx context.Context, contact Contact, callType notify.CallType) (Session, error) {
	if err := callType.Validate(); err != nil {
		return Session{}, err
	}
	first, last := contact.Names()
	if first == "" && last == "" {
		return Session{}, errs.Invalid("contact", "name is required")
	}
	callee := chat.Contact{ID: contact.ID, FirstName: first, LastName: last, Image: contact.Image}
	logger := log.LoggerFromContext(ctx).With(slog.String("callType", string(callType)))

	s := Session{
		ID:         uuid.NewString(),
		Contact:    callee,
		Type:       callType,
		StartedAt:  c.now(),
		Navigation: notify.CallNavigation(callee, callType),
	}
	_, err := c.notifier.ScheduleCallNotification(ctx, callee, callType)
	switch {
	case err == nil:
		s.Notified = true
	case errors.Is(err, errs.ErrPermissionDenied):
		logger.Warn("call notification skipped, permission denied")
	default:
		logger.Warn("error while scheduling call notification", slog.String(log.ErrorMsgLogField, err.Error()))
	}

	c.nav.Navigate(s.Navigation)
	c.mu.Lock()
	c.current = &s
	c.mu.Unlock()
	logger.Info("call initiated", slog.String("callID", s.ID))
	return s, nil
}

// EndCall clears the attempt and leaves the call screen. Ending a call that is not
// current still goes back.
func (c *Controller) EndCall(ctx context.Context, s Session) {
	c.mu.Lock()
	if c.current != nil && c.current.ID == s.ID {
		c.current = nil
	}
	c.mu.Unlock()
	log.LoggerFromContext(ctx).Info("call ended", slog.String("callID", s.ID))
	c.nav.GoBack()
}

// Current returns the call in progress.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Session{}, false
	}
	return *c.current, true
}
