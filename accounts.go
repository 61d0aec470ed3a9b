package courier

import (
	"log/slog"
	"net/http"

	"github.com/klipach/courier/account"
	"github.com/klipach/courier/contract"
	"github.com/klipach/courier/log"
)

// Accounts registers a user (POST ?action=register) or resolves a sign-in
// identifier to an email (POST ?action=resolve). Both run before the caller has
// an ID token, so they are not authenticated.
func (s *Server) Accounts(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	logger := s.deps.Logger.With(slog.String("function", "Accounts"), slog.String("action", action))
	if r.Method != http.MethodPost {
		methodNotAllowed(w, logger, r)
		return
	}
	ctx := log.WithLogger(r.Context(), logger)

	switch action {
	case "register":
		var req account.SignUp
		if err := decodeBody(r, logger, &req); err != nil {
			writeError(w, logger, "error while decoding request", err)
			return
		}
		uid, err := s.dir.Register(ctx, req)
		if err != nil {
			writeError(w, logger, "error while registering user", err)
			return
		}
		writeJSON(w, http.StatusCreated, contract.RegisterResponse{UserID: uid})
	case "resolve":
		var req contract.ResolveLoginRequest
		if err := decodeBody(r, logger, &req); err != nil {
			writeError(w, logger, "error while decoding request", err)
			return
		}
		email, err := s.dir.ResolveLogin(ctx, req.Identifier, req.Password)
		if err != nil {
			writeError(w, logger, "error while resolving login", err)
			return
		}
		writeJSON(w, http.StatusOK, contract.ResolveLoginResponse{Email: email})
	default:
		writeJSON(w, http.StatusBadRequest, contract.ErrorResponse{Error: "unknown action", Field: "action"})
	}
}
