package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/remote"
)

// MessageSync keeps the history of the open chat live. At most one chat is open at
// a time; opening another one releases the previous subscription first.
type MessageSync struct {
	remote remote.Client
	opts   options
	scope  scope
}

func NewMessageSync(client remote.Client, opts ...Option) *MessageSync {
	return &MessageSync{remote: client, opts: newOptions(opts)}
}

// Subscribe opens chatID of userID. onMessages receives the full history in server
// order on every change. Records that cannot be decoded are skipped.
func (s *MessageSync) Subscribe(ctx context.Context, userID, chatID string, onMessages func([]Message), onError func(error)) error {
	path, err := messagesPath(userID, chatID)
	if err != nil {
		return err
	}
	ctx = log.WithLogger(ctx, log.LoggerFromContext(ctx).With(
		slog.String(log.UserIDLogField, userID),
		slog.String(log.ChatIDLogField, chatID),
	))

	// callbacks of one subscription run serially, so these need no lock
	delivered := 0
	first := true

	return s.scope.replace(func() (remote.Subscription, error) {
		return s.remote.Subscribe(ctx, path,
			func(snap remote.Snapshot) {
				msgs, err := decodeMessages(ctx, snap)
				if err != nil {
					reportError(ctx, onError, "error while decoding messages", err)
					return
				}
				onMessages(msgs)
				if !first && s.opts.notifier != nil && len(msgs) > delivered {
					s.notifyIncoming(ctx, userID, chatID, msgs[delivered:])
				}
				first = false
				delivered = len(msgs)
			},
			func(err error) {
				reportError(ctx, onError, "message subscription failed", err)
			},
		)
	})
}

// Active reports whether a chat is open.
func (s *MessageSync) Active() bool {
	return s.scope.active()
}

// Close releases the message subscription when leaving the chat.
func (s *MessageSync) Close() error {
	return s.scope.release()
}

// SendText appends a text message and then refreshes the chat preview and clears
// its unread counter. The two writes are not atomic: when the preview update fails
// the message stays sent and a *errs.StaleStateError is returned with it.
func (s *MessageSync) SendText(ctx context.Context, userID, chatID, text string) (Message, error) {
	payload := Text{Body: text}
	if err := payload.validate(); err != nil {
		return Message{}, err
	}
	msg, err := s.append(ctx, userID, chatID, payload)
	if err != nil {
		return Message{}, err
	}

	path, err := chatPath(userID, chatID)
	if err != nil {
		return Message{}, err
	}
	err = s.remote.Update(ctx, path, map[string]any{
		"message": text,
		"time":    msg.Time,
		"unread":  0,
	})
	if err != nil {
		log.LoggerFromContext(ctx).Warn("message sent, chat preview not updated",
			slog.String(log.UserIDLogField, userID),
			slog.String(log.ChatIDLogField, chatID),
			slog.String(log.ErrorMsgLogField, err.Error()),
		)
		return msg, &errs.StaleStateError{ChatID: chatID, MessageID: msg.ID, Err: err}
	}
	return msg, nil
}

// SendMedia appends an image or location message.
//
// TODO: confirm with product whether media sends should refresh the chat preview
// and unread counter like text sends do; they currently leave both untouched.
func (s *MessageSync) SendMedia(ctx context.Context, userID, chatID string, payload Payload) (Message, error) {
	switch payload.(type) {
	case Image, Location:
	default:
		return Message{}, errs.Invalid("type", "media message must be an image or a location")
	}
	if err := payload.validate(); err != nil {
		return Message{}, err
	}
	return s.append(ctx, userID, chatID, payload)
}

func (s *MessageSync) append(ctx context.Context, userID, chatID string, payload Payload) (Message, error) {
	path, err := messagesPath(userID, chatID)
	if err != nil {
		return Message{}, err
	}
	now := s.opts.now()
	msg := Message{
		SenderID:  userID,
		Timestamp: now.UnixMilli(),
		Time:      now.Format(TimeLayout),
		Payload:   payload,
	}
	id, err := s.remote.Push(ctx, path, msg)
	if err != nil {
		return Message{}, err
	}
	msg.ID = id
	return msg, nil
}

// notifyIncoming schedules notifications for new messages not sent by userID.
// Failures are logged; they never end the subscription.
func (s *MessageSync) notifyIncoming(ctx context.Context, userID, chatID string, msgs []Message) {
	logger := log.LoggerFromContext(ctx)
	var from *Contact
	for _, m := range msgs {
		if m.SenderID == userID {
			continue
		}
		if from == nil {
			c, err := s.contact(ctx, userID, chatID)
			if err != nil {
				logger.Warn("error while loading chat contact", slog.String(log.ErrorMsgLogField, err.Error()))
				return
			}
			from = &c
		}
		if _, err := s.opts.notifier.ScheduleMessageNotification(ctx, m, *from); err != nil {
			if errors.Is(err, errs.ErrPermissionDenied) {
				logger.Debug("message notification skipped, permission denied")
				return
			}
			logger.Warn("error while scheduling message notification", slog.String(log.ErrorMsgLogField, err.Error()))
		}
	}
}

func (s *MessageSync) contact(ctx context.Context, userID, chatID string) (Contact, error) {
	path, err := chatPath(userID, chatID)
	if err != nil {
		return Contact{}, err
	}
	snap, err := s.remote.Get(ctx, path)
	if err != nil {
		return Contact{}, err
	}
	var c Chat
	if err := snap.Decode(&c); err != nil {
		return Contact{}, err
	}
	c.ID = chatID
	return c.Contact(), nil
}

func decodeMessages(ctx context.Context, snap remote.Snapshot) ([]Message, error) {
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(children))
	for _, child := range children {
		var m Message
		if err := child.Decode(&m); err != nil {
			log.LoggerFromContext(ctx).Warn("skipping malformed message",
				slog.String("messageID", child.Key),
				slog.String(log.ErrorMsgLogField, err.Error()),
			)
			continue
		}
		m.ID = child.Key
		msgs = append(msgs, m)
	}
	return msgs, nil
}
