package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/remote"
)

// ListSync keeps the chat list of one user live through a single subscription on
// users/{userID}/chats.
type ListSync struct {
	remote remote.Client
	opts   options
	scope  scope
}

func NewListSync(client remote.Client, opts ...Option) *ListSync {
	return &ListSync{remote: client, opts: newOptions(opts)}
}

// Subscribe starts delivering the chat list of userID, closing any previous
// subscription first. Every call of onChats carries the complete list in server
// order; it replaces whatever the caller held before.
func (s *ListSync) Subscribe(ctx context.Context, userID string, onChats func([]Chat), onError func(error)) error {
	path, err := chatsPath(userID)
	if err != nil {
		return err
	}
	ctx = log.WithLogger(ctx, log.LoggerFromContext(ctx).With(slog.String(log.UserIDLogField, userID)))

	return s.scope.replace(func() (remote.Subscription, error) {
		return s.remote.Subscribe(ctx, path,
			func(snap remote.Snapshot) {
				chats, err := decodeChats(ctx, snap)
				if err != nil {
					reportError(ctx, onError, "error while decoding chat list", err)
					return
				}
				onChats(chats)
			},
			func(err error) {
				reportError(ctx, onError, "chat list subscription failed", err)
			},
		)
	})
}

// Active reports whether a chat list subscription is live.
func (s *ListSync) Active() bool {
	return s.scope.active()
}

// Close releases the chat list subscription. Safe to call when none is active.
func (s *ListSync) Close() error {
	return s.scope.release()
}

// CreateChat appends a chat for userID and returns its server-generated id.
func (s *ListSync) CreateChat(ctx context.Context, userID string, in NewChat) (string, error) {
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" {
		return "", errs.Invalid("firstName", "first name is required")
	}
	if lastName == "" {
		return "", errs.Invalid("lastName", "last name is required")
	}
	path, err := chatsPath(userID)
	if err != nil {
		return "", err
	}

	chat := Chat{
		FirstName: firstName,
		LastName:  lastName,
		Message:   in.Message,
		Time:      s.opts.now().Format(TimeLayout),
		Unread:    1,
		Online:    true,
		Image:     in.Image,
	}
	id, err := s.remote.Push(ctx, path, chat)
	if err != nil {
		return "", err
	}
	log.LoggerFromContext(ctx).Info("chat created",
		slog.String(log.UserIDLogField, userID),
		slog.String(log.ChatIDLogField, id),
	)
	return id, nil
}

// DeleteChat removes a chat and its history. Unknown ids are a no-op.
func (s *ListSync) DeleteChat(ctx context.Context, userID, chatID string) error {
	path, err := chatPath(userID, chatID)
	if err != nil {
		return err
	}
	return s.remote.Remove(ctx, path)
}

// MarkRead resets the unread counter of an existing chat.
func (s *ListSync) MarkRead(ctx context.Context, userID, chatID string) error {
	path, err := chatPath(userID, chatID)
	if err != nil {
		return err
	}
	snap, err := s.remote.Get(ctx, path)
	if err != nil {
		return err
	}
	if !snap.Exists() {
		return nil
	}
	return s.remote.Update(ctx, path, map[string]any{"unread": 0})
}

func decodeChats(ctx context.Context, snap remote.Snapshot) ([]Chat, error) {
	children, err := snap.Children()
	if err != nil {
		return nil, err
	}
	chats := make([]Chat, 0, len(children))
	for _, child := range children {
		var c Chat
		if err := child.Decode(&c); err != nil {
			log.LoggerFromContext(ctx).Warn("skipping malformed chat",
				slog.String(log.ChatIDLogField, child.Key),
				slog.String(log.ErrorMsgLogField, err.Error()),
			)
			continue
		}
		c.ID = child.Key
		chats = append(chats, c)
	}
	return chats, nil
}
