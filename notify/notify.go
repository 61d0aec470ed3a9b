// Package notify routes chat and call notifications to the OS tray or a push
// transport, and routes notification taps back to a screen.
package notify

import (
	"context"
	"encoding/json"

	"github.com/klipach/courier/contract"
	"github.com/klipach/courier/errs"
)

const (
	ScreenChat = "Chat"
	ScreenCall = "Call"
)

// CallType is the kind of a call: audio or video.
type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

func (t CallType) Validate() error {
	switch t {
	case CallAudio, CallVideo:
		return nil
	}
	return errs.Invalid("callType", "must be audio or video")
}

// Importance of an Android notification channel.
type Importance string

const (
	ImportanceHigh Importance = "high"
	ImportanceMax  Importance = "max"
)

// ChannelConfig describes a notification channel.
type ChannelConfig struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Importance Importance `json:"importance"`
	Sound      string     `json:"sound"`
	Vibration  []int64    `json:"vibrationPattern"`
}

var (
	MessagesChannel = ChannelConfig{
		ID:         "messages",
		Name:       "Chat Messages",
		Importance: ImportanceHigh,
		Sound:      "message_notification.wav",
		Vibration:  []int64{0, 250, 250, 250},
	}
	CallsChannel = ChannelConfig{
		ID:         "calls",
		Name:       "Voice/Video Calls",
		Importance: ImportanceMax,
		Sound:      "call_ringtone.wav",
		Vibration:  []int64{0, 500, 250, 500},
	}
)

// Channels returns the channels registered on platforms that support them.
func Channels() []ChannelConfig {
	return []ChannelConfig{MessagesChannel, CallsChannel}
}

// Navigation is an instruction to show a screen with parameters. Unknown screens
// are passed through as is.
type Navigation struct {
	Screen string         `json:"screen"`
	Params map[string]any `json:"params,omitempty"`
}

// Payload is a notification ready for a tray.
type Payload struct {
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	Channel string     `json:"channelId"`
	Sound   string     `json:"sound"`
	Data    Navigation `json:"data"`
}

// Tray is the OS notification tray or a push transport standing in for it.
type Tray interface {
	// Schedule shows p immediately and returns its id.
	Schedule(ctx context.Context, p Payload) (string, error)
	// SetChannel creates or updates a notification channel.
	SetChannel(ctx context.Context, c ChannelConfig) error
	// LastResponse returns the tap that launched the app, or nil.
	LastResponse(ctx context.Context) ([]byte, error)
}

// Permission is the notification permission state of a device.
type Permission string

const (
	PermissionUndetermined Permission = "undetermined"
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
)

// Device reports platform capabilities and owns the permission prompt.
type Device interface {
	IsPhysical() bool
	SupportsChannels() bool
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
}

// Navigator receives navigation instructions.
type Navigator interface {
	Navigate(nav Navigation)
	GoBack()
}

// DecodeTapped extracts the navigation instruction of a tapped notification.
// It reports false for missing or malformed data and for an empty screen.
func DecodeTapped(raw []byte) (Navigation, bool) {
	var resp contract.NotificationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Navigation{}, false
	}
	data := resp.Notification.Request.Content.Data
	if data.Screen == "" {
		return Navigation{}, false
	}
	params, ok := decodeParams(data.Params)
	if !ok {
		return Navigation{}, false
	}
	return Navigation{Screen: data.Screen, Params: params}, true
}

func decodeParams(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if encoded == "" {
			return nil, true
		}
		raw = json.RawMessage(encoded)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, false
	}
	return params, true
}

// EncodeTapped builds the tray response for a tap on p.
func EncodeTapped(p Payload) ([]byte, error) {
	var resp contract.NotificationResponse
	content := &resp.Notification.Request.Content
	content.Title = p.Title
	content.Body = p.Body
	content.Data.Screen = p.Data.Screen
	if p.Data.Params != nil {
		params, err := json.Marshal(p.Data.Params)
		if err != nil {
			return nil, err
		}
		content.Data.Params = params
	}
	return json.Marshal(resp)
}
