package courier

import (
	"net/http"

	"github.com/klipach/courier/contract"
	"github.com/klipach/courier/log"
)

// Devices registers the push token of the caller's device (POST).
func (s *Server) Devices(w http.ResponseWriter, r *http.Request) {
	logger, uid, ok := s.authenticate(w, r, "Devices")
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, logger, r)
		return
	}
	var req contract.DeviceRequest
	if err := decodeBody(r, logger, &req); err != nil {
		writeError(w, logger, "error while decoding request", err)
		return
	}
	if err := s.tokens.Register(log.WithLogger(r.Context(), logger), uid, req.Token); err != nil {
		writeError(w, logger, "error while registering push token", err)
		return
	}
	logger.Info("push token registered")
	w.WriteHeader(http.StatusNoContent)
}
