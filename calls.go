package courier

import (
	"net/http"
	"time"

	"github.com/klipach/courier/call"
	"github.com/klipach/courier/chat"
	"github.com/klipach/courier/contract"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/notify"
)

// Calls initiates a call (POST). The response carries the navigation instruction
// that opens the call screen.
func (s *Server) Calls(w http.ResponseWriter, r *http.Request) {
	logger, uid, ok := s.authenticate(w, r, "Calls")
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, logger, r)
		return
	}
	ctx := log.WithLogger(r.Context(), logger)

	var req contract.CallRequest
	if err := decodeBody(r, logger, &req); err != nil {
		writeError(w, logger, "error while decoding request", err)
		return
	}

	contact := call.Contact{
		ID:          req.ContactID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.ContactName,
		Image:       chat.ImageRef(req.Image),
	}
	if first, last := contact.Names(); first == "" && last == "" && contact.ID != "" {
		// calling from a chat: the counterpart is the stored chat entry
		chats, err := chat.LoadChats(ctx, s.deps.Remote, uid)
		if err != nil {
			writeError(w, logger, "error while loading chats", err)
			return
		}
		if c, ok := chat.FindChat(chats, contact.ID); ok {
			contact.FirstName, contact.LastName, contact.Image = c.FirstName, c.LastName, c.Image
		}
	}

	nav := &notify.Recorder{}
	controller := call.NewController(s.router(uid, nav), nav)
	session, err := controller.InitiateCall(ctx, contact, notify.CallType(req.CallType))
	if err != nil {
		writeError(w, logger, "error while initiating call", err)
		return
	}

	current, _ := nav.Current()
	writeJSON(w, http.StatusOK, contract.CallResponse{
		CallID:    session.ID,
		CallType:  string(session.Type),
		Notified:  session.Notified,
		Screen:    current.Screen,
		Params:    current.Params,
		StartedAt: session.StartedAt.UTC().Format(time.RFC3339),
	})
}
