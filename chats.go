package courier

import (
	"log/slog"
	"net/http"

	"github.com/klipach/courier/chat"
	"github.com/klipach/courier/contract"
	"github.com/klipach/courier/filter"
	"github.com/klipach/courier/log"
)

// Chats streams the chat list (GET, optional q search), creates a chat (POST) or
// deletes one (DELETE ?chat_id=).
func (s *Server) Chats(w http.ResponseWriter, r *http.Request) {
	logger, uid, ok := s.authenticate(w, r, "Chats")
	if !ok {
		return
	}
	ctx := log.WithLogger(r.Context(), logger)
	r = r.WithContext(ctx)
	list := chat.NewListSync(s.deps.Remote)

	switch r.Method {
	case http.MethodGet:
		s.streamChats(w, r, list, uid)
	case http.MethodPost:
		var req contract.CreateChatRequest
		if err := decodeBody(r, logger, &req); err != nil {
			writeError(w, logger, "error while decoding request", err)
			return
		}
		id, err := list.CreateChat(ctx, uid, chat.NewChat{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Message:   req.Message,
			Image:     chat.ImageRef(req.Image),
		})
		if err != nil {
			writeError(w, logger, "error while creating chat", err)
			return
		}
		writeJSON(w, http.StatusCreated, contract.CreateChatResponse{ChatID: id})
	case http.MethodDelete:
		chatID := r.URL.Query().Get("chat_id")
		if err := list.DeleteChat(ctx, uid, chatID); err != nil {
			writeError(w, logger, "error while deleting chat", err)
			return
		}
		logger.Info("chat deleted", slog.String(log.ChatIDLogField, chatID))
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, logger, r)
	}
}

func (s *Server) streamChats(w http.ResponseWriter, r *http.Request, list *chat.ListSync, uid string) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)
	query := r.URL.Query().Get("q")

	updates := newRelay[[]chat.Chat](ctx)
	if err := list.Subscribe(ctx, uid, updates.push, updates.fail); err != nil {
		writeError(w, logger, "error while subscribing to chats", err)
		return
	}
	defer list.Close()

	out, ok := newEventStream(w)
	if !ok {
		logger.Error("streaming unsupported!")
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	err := updates.run(ctx, out, func(chats []chat.Chat) any {
		return contract.ChatsEvent{Chats: chatViews(filter.Chats(chats, query))}
	})
	if err != nil {
		logger.Warn("chat stream ended", slog.String(log.ErrorMsgLogField, err.Error()))
	}
}

func chatViews(chats []chat.Chat) []contract.ChatView {
	views := make([]contract.ChatView, 0, len(chats))
	for _, c := range chats {
		views = append(views, contract.ChatView{
			ID:        c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Message:   c.Message,
			Time:      c.Time,
			Unread:    c.Unread,
			Online:    c.Online,
			Image:     string(c.Image),
		})
	}
	return views
}
