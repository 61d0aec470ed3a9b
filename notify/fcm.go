package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"firebase.google.com/go/v4/messaging"

	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/remote"
)

var ErrNoPushToken = errors.New("no push token registered")

// Sender is the part of the Firebase messaging client FCMTray uses.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Tokens stores device push tokens at users/{uid}/pushToken.
type Tokens struct {
	remote remote.Client
}

func NewTokens(client remote.Client) *Tokens {
	return &Tokens{remote: client}
}

func tokenPath(userID string) (string, error) {
	return remote.Join("users", userID, "pushToken")
}

// Register stores the push token of the user's device, replacing the previous one.
func (t *Tokens) Register(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errs.Invalid("token", "push token is required")
	}
	path, err := tokenPath(userID)
	if err != nil {
		return err
	}
	return t.remote.Set(ctx, path, token)
}

// Lookup returns the push token of userID or ErrNoPushToken.
func (t *Tokens) Lookup(ctx context.Context, userID string) (string, error) {
	path, err := tokenPath(userID)
	if err != nil {
		return "", err
	}
	snap, err := t.remote.Get(ctx, path)
	if err != nil {
		return "", err
	}
	var token string
	if err := snap.Decode(&token); err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoPushToken
	}
	return token, nil
}

// Forget removes the push token of userID.
func (t *Tokens) Forget(ctx context.Context, userID string) error {
	path, err := tokenPath(userID)
	if err != nil {
		return err
	}
	return t.remote.Remove(ctx, path)
}

// FCMTray delivers notifications of one user through Firebase Cloud Messaging.
// Channels live on the device, so SetChannel only logs, and there is no launch tap
// to report.
type FCMTray struct {
	sender Sender
	tokens *Tokens
	userID string
}

func NewFCMTray(sender Sender, tokens *Tokens, userID string) *FCMTray {
	return &FCMTray{sender: sender, tokens: tokens, userID: userID}
}

func (t *FCMTray) Schedule(ctx context.Context, p Payload) (string, error) {
	token, err := t.tokens.Lookup(ctx, t.userID)
	if err != nil {
		return "", err
	}
	msg, err := fcmMessage(token, p)
	if err != nil {
		return "", err
	}
	id, err := t.sender.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) {
			log.LoggerFromContext(ctx).Info("push token unregistered, forgetting it", slog.String(log.UserIDLogField, t.userID))
			if ferr := t.tokens.Forget(ctx, t.userID); ferr != nil {
				log.LoggerFromContext(ctx).Warn("error while forgetting push token", slog.String(log.ErrorMsgLogField, ferr.Error()))
			}
			return "", ErrNoPushToken
		}
		return "", err
	}
	return id, nil
}

func (t *FCMTray) SetChannel(ctx context.Context, c ChannelConfig) error {
	log.LoggerFromContext(ctx).Debug("channel is created on device", slog.String(log.ChannelLogField, c.ID))
	return nil
}

func (t *FCMTray) LastResponse(context.Context) ([]byte, error) {
	return nil, nil
}

// fcmMessage maps p onto an FCM message. Data values must be strings, so params
// travel JSON encoded.
func fcmMessage(token string, p Payload) (*messaging.Message, error) {
	data := map[string]string{"screen": p.Data.Screen}
	if p.Data.Params != nil {
		params, err := json.Marshal(p.Data.Params)
		if err != nil {
			return nil, err
		}
		data["params"] = string(params)
	}
	priority := "normal"
	if p.Channel == CallsChannel.ID || p.Channel == MessagesChannel.ID {
		priority = "high"
	}
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: priority,
			Notification: &messaging.AndroidNotification{
				ChannelID: p.Channel,
				Sound:     p.Sound,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: p.Sound},
			},
		},
	}, nil
}
