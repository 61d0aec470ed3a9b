package courier

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/klipach/courier/chat"
	"github.com/klipach/courier/contract"
	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/notify"
	"github.com/klipach/courier/render"
)

// Messages streams the history of a chat (GET ?chat_id=) or sends a message (POST).
func (s *Server) Messages(w http.ResponseWriter, r *http.Request) {
	logger, uid, ok := s.authenticate(w, r, "Messages")
	if !ok {
		return
	}
	r = r.WithContext(log.WithLogger(r.Context(), logger))

	switch r.Method {
	case http.MethodGet:
		s.streamMessages(w, r, uid)
	case http.MethodPost:
		s.sendMessage(w, r, uid)
	default:
		methodNotAllowed(w, logger, r)
	}
}

func (s *Server) streamMessages(w http.ResponseWriter, r *http.Request, uid string) {
	ctx := r.Context()
	chatID := r.URL.Query().Get("chat_id")
	logger := log.LoggerFromContext(ctx).With(slog.String(log.ChatIDLogField, chatID))
	ctx = log.WithLogger(ctx, logger)

	router := s.router(uid, &notify.Recorder{})
	stream := chat.NewMessageSync(s.deps.Remote, chat.WithNotifier(router))
	updates := newRelay[[]chat.Message](ctx)
	if err := stream.Subscribe(ctx, uid, chatID, updates.push, updates.fail); err != nil {
		writeError(w, logger, "error while subscribing to messages", err)
		return
	}
	defer stream.Close()

	if err := chat.NewListSync(s.deps.Remote).MarkRead(ctx, uid, chatID); err != nil {
		logger.Warn("error while marking chat read", slog.String(log.ErrorMsgLogField, err.Error()))
	}

	out, ok := newEventStream(w)
	if !ok {
		logger.Error("streaming unsupported!")
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	err := updates.run(ctx, out, func(msgs []chat.Message) any {
		return contract.MessagesEvent{Messages: messageViews(msgs, uid)}
	})
	if err != nil {
		logger.Warn("message stream ended", slog.String(log.ErrorMsgLogField, err.Error()))
	}
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request, uid string) {
	ctx := r.Context()
	logger := log.LoggerFromContext(ctx)
	var req contract.SendMessageRequest
	if err := decodeBody(r, logger, &req); err != nil {
		writeError(w, logger, "error while decoding request", err)
		return
	}
	logger = logger.With(slog.String(log.ChatIDLogField, req.ChatID))
	ctx = log.WithLogger(ctx, logger)
	stream := chat.NewMessageSync(s.deps.Remote)

	var (
		msg chat.Message
		err error
	)
	switch chat.Kind(req.Type) {
	case chat.KindText, "":
		msg, err = stream.SendText(ctx, uid, req.ChatID, req.Text)
	case chat.KindImage:
		msg, err = stream.SendMedia(ctx, uid, req.ChatID, chat.Image{URI: req.Image})
	case chat.KindLocation:
		if req.Location == nil {
			writeError(w, logger, "error while sending message", errs.Invalid("location", "location is required"))
			return
		}
		msg, err = stream.SendMedia(ctx, uid, req.ChatID, chat.Location{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
		})
	default:
		err = errs.Invalid("type", "must be text, image or location")
	}

	var stale *errs.StaleStateError
	switch {
	case errors.As(err, &stale):
		writeJSON(w, http.StatusOK, contract.SendMessageResponse{MessageID: msg.ID, Time: msg.Time, Stale: true})
	case err != nil:
		writeError(w, logger, "error while sending message", err)
	default:
		writeJSON(w, http.StatusCreated, contract.SendMessageResponse{MessageID: msg.ID, Time: msg.Time})
	}
}

func messageViews(msgs []chat.Message, uid string) []contract.MessageView {
	views := make([]contract.MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := contract.MessageView{
			ID:        m.ID,
			Type:      string(m.Kind()),
			SenderID:  m.SenderID,
			Mine:      m.SenderID == uid,
			Timestamp: m.Timestamp,
			Time:      m.Time,
		}
		switch p := m.Payload.(type) {
		case chat.Text:
			v.Text = p.Body
			v.HTML = render.HTML(p.Body)
		case chat.Image:
			v.Image = p.URI
		case chat.Location:
			v.Location = &contract.Location{Latitude: p.Latitude, Longitude: p.Longitude}
		}
		views = append(views, v)
	}
	return views
}
