// Package session composes the live components of one signed-in user.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/klipach/courier/chat"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/notify"
	"github.com/klipach/courier/remote"
)

// Session owns the chat list and message stream subscriptions of a user and the
// notification router. Logout releases all of them.
type Session struct {
	userID   string
	Chats    *chat.ListSync
	Messages *chat.MessageSync
	Router   *notify.Router

	mu       sync.Mutex
	openChat string
	closed   bool
}

// New builds the session of userID. Incoming messages of the open chat are
// notified through router.
func New(userID string, client remote.Client, router *notify.Router, opts ...chat.Option) *Session {
	msgOpts := append([]chat.Option{chat.WithNotifier(router)}, opts...)
	return &Session{
		userID:   userID,
		Chats:    chat.NewListSync(client, opts...),
		Messages: chat.NewMessageSync(client, msgOpts...),
		Router:   router,
	}
}

func (s *Session) UserID() string {
	return s.userID
}

// Open attaches the router and starts the chat list.
func (s *Session) Open(ctx context.Context, onChats func([]chat.Chat), onError func(error)) error {
	if err := s.Router.Init(ctx); err != nil {
		log.LoggerFromContext(ctx).Warn("error while initializing notifications", slog.String(log.ErrorMsgLogField, err.Error()))
	}
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
	return s.Chats.Subscribe(ctx, s.userID, onChats, onError)
}

// OpenChat makes chatID the open chat, marks it read and streams its messages.
// The previously open chat is released first.
func (s *Session) OpenChat(ctx context.Context, chatID string, onMessages func([]chat.Message), onError func(error)) error {
	// set first: onMessages may close the chat before Subscribe returns
	s.mu.Lock()
	s.openChat = chatID
	s.mu.Unlock()
	if err := s.Messages.Subscribe(ctx, s.userID, chatID, onMessages, onError); err != nil {
		s.mu.Lock()
		if s.openChat == chatID {
			s.openChat = ""
		}
		s.mu.Unlock()
		return err
	}
	if err := s.Chats.MarkRead(ctx, s.userID, chatID); err != nil {
		log.LoggerFromContext(ctx).Warn("error while marking chat read",
			slog.String(log.ChatIDLogField, chatID),
			slog.String(log.ErrorMsgLogField, err.Error()),
		)
	}
	return nil
}

// OpenChatID returns the chat whose messages are streamed, if any.
func (s *Session) OpenChatID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openChat, s.openChat != ""
}

// CloseChat releases the message stream.
func (s *Session) CloseChat() error {
	s.mu.Lock()
	s.openChat = ""
	s.mu.Unlock()
	return s.Messages.Close()
}

// Logout releases both subscriptions and detaches the router. It is safe to call
// more than once.
func (s *Session) Logout() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := errors.Join(s.CloseChat(), s.Chats.Close())
	s.Router.Shutdown()
	return err
}
