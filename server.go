package courier

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/klipach/courier/account"
	"github.com/klipach/courier/auth"
	"github.com/klipach/courier/config"
	"github.com/klipach/courier/contract"
	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/notify"
	"github.com/klipach/courier/remote"
)

const (
	bodyLogField   = "body"
	methodLogField = "method"

	maxBodyBytes = 1 << 20
)

// Deps are the long-lived dependencies of the functions.
type Deps struct {
	Config   config.Config
	Remote   remote.Client
	Verifier auth.Verifier
	Users    account.UserCreator
	// Sender delivers push notifications; nil keeps them in the local tray.
	Sender notify.Sender
	Logger *slog.Logger
}

// Server handles the HTTP functions over Deps.
type Server struct {
	deps   Deps
	tokens *notify.Tokens
	dir    *account.Directory
	tray   *notify.LocalTray
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(log.NewCloudLoggingHandler())
	}
	return &Server{
		deps:   deps,
		tokens: notify.NewTokens(deps.Remote),
		dir:    account.NewDirectory(deps.Remote, deps.Users),
		tray:   notify.NewLocalTray(),
	}
}

// router returns the notification router for userID: FCM to the user's device when
// a sender is configured, the shared local tray otherwise.
func (s *Server) router(userID string, nav notify.Navigator) *notify.Router {
	var tray notify.Tray = s.tray
	if s.deps.Sender != nil {
		tray = notify.NewFCMTray(s.deps.Sender, s.tokens, userID)
	}
	// a device that registered a push token has granted permission
	device := notify.NewStaticDevice(s.deps.Config.Platform, true, notify.PermissionGranted)
	return notify.NewRouter(tray, device, nav)
}

// authenticate verifies the caller and returns a logger and user id for the request.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, function string) (*slog.Logger, string, bool) {
	logger := s.deps.Logger.With(slog.String("function", function), slog.String(methodLogField, r.Method))
	uid, err := auth.Authenticate(r, s.deps.Verifier)
	if err != nil {
		logger.Error("error while authenticating", slog.String(log.ErrorMsgLogField, err.Error()))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, "", false
	}
	return logger.With(slog.String(log.UserIDLogField, uid)), uid, true
}

func decodeBody(r *http.Request, logger *slog.Logger, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	logger.Debug("incoming request", slog.String(bodyLogField, string(data)))
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Invalid("body", "malformed JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code: validation 400, remote 502, others 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		logger.Info(msg, slog.String(log.ErrorMsgLogField, err.Error()))
		writeJSON(w, http.StatusBadRequest, contract.ErrorResponse{Error: err.Error(), Field: ve.Field})
	case errs.IsRemote(err):
		logger.Error(msg, slog.String(log.ErrorMsgLogField, err.Error()))
		writeJSON(w, http.StatusBadGateway, contract.ErrorResponse{Error: "remote store unavailable"})
	case errors.Is(err, account.ErrUnknownUsername), errors.Is(err, account.ErrIncompleteProfile):
		logger.Info(msg, slog.String(log.ErrorMsgLogField, err.Error()))
		writeJSON(w, http.StatusNotFound, contract.ErrorResponse{Error: err.Error()})
	default:
		logger.Error(msg, slog.String(log.ErrorMsgLogField, err.Error()))
		writeJSON(w, http.StatusInternalServerError, contract.ErrorResponse{Error: "internal error"})
	}
}

func methodNotAllowed(w http.ResponseWriter, logger *slog.Logger, r *http.Request) {
	logger.Error("invalid method: " + r.Method)
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}
