package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/klipach/courier/chat"
	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/metrics"
	"github.com/klipach/courier/render"
)

const maxBodyRunes = 240

// Router schedules notifications and routes taps to the navigator. It is built once
// per app instance and attached with Init; Shutdown detaches it.
type Router struct {
	tray   Tray
	device Device
	nav    Navigator

	mu               sync.Mutex
	registered       bool
	coldStartChecked bool
	attached         bool
}

func NewRouter(tray Tray, device Device, nav Navigator) *Router {
	return &Router{tray: tray, device: device, nav: nav}
}

// RegisterChannels creates the messages and calls channels once. Platforms without
// channels skip it.
func (r *Router) RegisterChannels(ctx context.Context) error {
	if !r.device.SupportsChannels() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered {
		return nil
	}
	for _, c := range Channels() {
		if err := r.tray.SetChannel(ctx, c); err != nil {
			return fmt.Errorf("error while registering channel %s: %w", c.ID, err)
		}
	}
	r.registered = true
	return nil
}

// Init registers channels, attaches tap routing and, on the first call only, routes
// the tap that launched the app.
func (r *Router) Init(ctx context.Context) error {
	if err := r.RegisterChannels(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.attached = true
	coldStart := !r.coldStartChecked
	r.coldStartChecked = true
	r.mu.Unlock()

	if !coldStart {
		return nil
	}
	raw, err := r.tray.LastResponse(ctx)
	if err != nil {
		log.LoggerFromContext(ctx).Warn("error while reading launch notification", slog.String(log.ErrorMsgLogField, err.Error()))
		return nil
	}
	if raw != nil {
		r.HandleTap(ctx, raw)
	}
	return nil
}

// Shutdown detaches tap routing. Taps after Shutdown are ignored.
func (r *Router) Shutdown() {
	r.mu.Lock()
	r.attached = false
	r.mu.Unlock()
}

// HandleTap decodes a tapped notification and navigates to its screen. It reports
// whether navigation happened.
func (r *Router) HandleTap(ctx context.Context, raw []byte) bool {
	r.mu.Lock()
	attached := r.attached
	r.mu.Unlock()
	logger := log.LoggerFromContext(ctx)
	if !attached {
		logger.Debug("notification tap ignored, router detached")
		return false
	}
	nav, ok := DecodeTapped(raw)
	if !ok {
		logger.Debug("notification tap without navigation data")
		return false
	}
	metrics.Taps.WithLabelValues(nav.Screen).Inc()
	logger.Info("routing notification tap", slog.String(log.ScreenLogField, nav.Screen))
	r.nav.Navigate(nav)
	return true
}

// RequestPermissions prompts for notification permission unless it is already
// granted. Simulators and emulators never get push notifications, so they report
// false without prompting.
func (r *Router) RequestPermissions(ctx context.Context) (bool, error) {
	if !r.device.IsPhysical() {
		log.LoggerFromContext(ctx).Warn("must use physical device for push notifications")
		return false, nil
	}
	status, err := r.device.Permission(ctx)
	if err != nil {
		return false, err
	}
	if status != PermissionGranted {
		status, err = r.device.RequestPermission(ctx)
		if err != nil {
			return false, err
		}
	}
	return status == PermissionGranted, nil
}

// ScheduleMessageNotification notifies about a message received from a contact.
func (r *Router) ScheduleMessageNotification(ctx context.Context, msg chat.Message, from chat.Contact) (string, error) {
	return r.schedule(ctx, MessagePayload(msg, from))
}

// ScheduleCallNotification notifies about an incoming call from contact.
func (r *Router) ScheduleCallNotification(ctx context.Context, contact chat.Contact, callType CallType) (string, error) {
	if err := callType.Validate(); err != nil {
		return "", err
	}
	return r.schedule(ctx, CallPayload(contact, callType))
}

func (r *Router) schedule(ctx context.Context, p Payload) (string, error) {
	status, err := r.device.Permission(ctx)
	if err != nil {
		metrics.Notifications.WithLabelValues(p.Channel, "error").Inc()
		return "", err
	}
	if status == PermissionDenied {
		metrics.Notifications.WithLabelValues(p.Channel, "denied").Inc()
		return "", errs.ErrPermissionDenied
	}
	id, err := r.tray.Schedule(ctx, p)
	if err != nil {
		metrics.Notifications.WithLabelValues(p.Channel, "error").Inc()
		return "", fmt.Errorf("error while scheduling %s notification: %w", p.Channel, err)
	}
	metrics.Notifications.WithLabelValues(p.Channel, "scheduled").Inc()
	log.LoggerFromContext(ctx).Debug("notification scheduled",
		slog.String(log.ChannelLogField, p.Channel),
		slog.String("notificationID", id),
	)
	return id, nil
}

// MessagePayload builds the notification for msg received from a contact.
func MessagePayload(msg chat.Message, from chat.Contact) Payload {
	return Payload{
		Title:   "New message from " + from.FirstName,
		Body:    messageBody(msg),
		Channel: MessagesChannel.ID,
		Sound:   MessagesChannel.Sound,
		Data: Navigation{
			Screen: ScreenChat,
			Params: map[string]any{"chatUser": from.Params()},
		},
	}
}

func messageBody(msg chat.Message) string {
	switch p := msg.Payload.(type) {
	case chat.Image:
		return "Sent a photo"
	case chat.Location:
		return "Shared a location"
	case chat.Text:
		return render.Truncate(render.Plain(p.Body), maxBodyRunes)
	}
	return ""
}

// CallPayload builds the incoming call notification.
func CallPayload(contact chat.Contact, callType CallType) Payload {
	return Payload{
		Title:   fmt.Sprintf("Incoming %s call", callType),
		Body:    fmt.Sprintf("From %s %s", contact.FirstName, contact.LastName),
		Channel: CallsChannel.ID,
		Sound:   CallsChannel.Sound,
		Data:    CallNavigation(contact, callType),
	}
}

// CallNavigation is the instruction that opens the call screen.
func CallNavigation(contact chat.Contact, callType CallType) Navigation {
	return Navigation{
		Screen: ScreenCall,
		Params: map[string]any{
			"contactName":  strings.TrimSpace(contact.FirstName + " " + contact.LastName),
			"contactImage": string(contact.Image),
			"callType":     string(callType),
		},
	}
}
