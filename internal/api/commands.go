package api

import (
	"errors"
	"net/http"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/audit"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
)

// commandResponse is the body of POST /commands.
type commandResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// handleSubmitCommand decodes a command and submits it through the audit
// layer. Acceptance means the command is queued; it is applied at the next
// tick boundary.
//
// Responses:
//   - 202: accepted into the queue
//   - 409: rejected by the controller (bad target, bad argument, queue full)
//   - 400: malformed body or missing kind
func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := control.DecodeCommand(r.Body, true)
	if err != nil {
		writeBadRequest(w, "invalid command: "+err.Error())
		return
	}

	id, err := s.commands.Submit(r.Context(), cmd, audit.SourceAPI, actorFromContext(r.Context()))
	if err != nil {
		s.logger.Info("command rejected",
			"id", id,
			"kind", cmd.Kind,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		code := ErrCodeConflict
		if errors.Is(err, control.ErrQueueFull) {
			code = ErrCodeQueueFull
		}
		writeJSON(w, http.StatusConflict, struct {
			commandResponse
			Code string `json:"code"`
		}{commandResponse{ID: id, Error: err.Error()}, code})
		return
	}

	writeJSON(w, http.StatusAccepted, commandResponse{ID: id, Accepted: true})
}
