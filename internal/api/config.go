package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardfile"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/cardstore"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/rtc"
)

// configRequest is the JSON body of PUT /config.
type configRequest struct {
	Note     string        `json:"note"`
	Layout   card.Layout   `json:"layout"`
	Cards    []card.Card   `json:"cards"`
	Channels []rtc.Channel `json:"channels"`
}

// applyResponse is the body of a successful PUT /config. Stored is false
// when the engine took the configuration but the revision could not be
// written; it will be lost on restart.
type applyResponse struct {
	Revision *cardstore.Revision `json:"revision"`
	Stored   bool                `json:"stored"`
	Warning  string              `json:"warning,omitempty"`
}

// handleGetConfig returns the active configuration revision.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	rev, ok := s.configs.Active()
	if !ok {
		writeUnavailable(w, "configuration not loaded")
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// handleConfigHistory lists stored revisions, most recent first.
//
// Query parameters:
//   - limit: max results (default 20, max 200)
func (s *Server) handleConfigHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history, err := s.configs.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list config revisions", "error", err)
		writeInternalError(w, "failed to list config revisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": history})
}

// handleGetSchedules returns the RTC schedule channels in force.
func (s *Server) handleGetSchedules(w http.ResponseWriter, _ *http.Request) {
	chs := s.schedules.Channels()
	if chs == nil {
		chs = []rtc.Channel{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": chs})
}

// handleApplyConfig replaces the card configuration and the RTC schedule.
//
// The body is either a JSON configRequest or, with Content-Type
// application/yaml, a layout file. The engine is paused for the swap; when
// it does not acknowledge in time the previous configuration stays active
// and 503 is returned.
func (s *Server) handleApplyConfig(w http.ResponseWriter, r *http.Request) {
	rev, err := s.decodeRevision(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	rev.Source = cardstore.SourceAPI
	if rev.Note == "" {
		rev.Note = actorFromContext(r.Context())
	}

	applied, err := s.configs.Apply(r.Context(), s.engine, s.schedules, *rev)
	switch {
	case err == nil:
		s.logger.Info("configuration applied",
			"revision", applied.ID,
			"actor", actorFromContext(r.Context()),
		)
		writeJSON(w, http.StatusOK, applyResponse{Revision: applied, Stored: true})
	case applied != nil:
		writeJSON(w, http.StatusOK, applyResponse{Revision: applied, Warning: err.Error()})
	case errors.Is(err, control.ErrPauseTimeout):
		writeUnavailable(w, "engine did not pause in time; previous configuration kept")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("configuration apply failed", "error", err)
		writeInternalError(w, "configuration apply failed")
	}
}

// decodeRevision reads the request body as JSON or as a YAML layout file.
func (s *Server) decodeRevision(r *http.Request) (*cardstore.Revision, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty means JSON
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return cardfile.Parse(data)
	default:
		var req configRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return nil, err
		}
		return &cardstore.Revision{
			Note:     req.Note,
			Layout:   req.Layout,
			Cards:    req.Cards,
			Channels: req.Channels,
		}, nil
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		cardstore.ErrLayoutMismatch,
		card.ErrInvalidConfig,
		card.ErrInvalidLayout,
		rtc.ErrInvalidChannel,
		cardfile.ErrInvalidFile,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
