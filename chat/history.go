package chat

import (
	"context"
	"log/slog"

	"github.com/klipach/courier/log"
	"github.com/klipach/courier/remote"
)

// LoadHistory reads the messages of a chat once, without subscribing.
func LoadHistory(ctx context.Context, client remote.Client, userID, chatID string) ([]Message, error) {
	path, err := messagesPath(userID, chatID)
	if err != nil {
		return nil, err
	}
	snap, err := client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		log.LoggerFromContext(ctx).Info("chat has no messages",
			slog.String(log.UserIDLogField, userID),
			slog.String(log.ChatIDLogField, chatID),
		)
		return []Message{}, nil
	}
	return decodeMessages(ctx, snap)
}

// LoadChats reads the chat list of a user once, without subscribing.
func LoadChats(ctx context.Context, client remote.Client, userID string) ([]Chat, error) {
	path, err := chatsPath(userID)
	if err != nil {
		return nil, err
	}
	snap, err := client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeChats(ctx, snap)
}

// FindChat returns the chat with chatID from a delivered list.
func FindChat(chats []Chat, chatID string) (Chat, bool) {
	for _, c := range chats {
		if c.ID == chatID {
			return c, true
		}
	}
	return Chat{}, false
}
