package api

import (
	"net/http"
	"strconv"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/audit"
)

// handleListAudit returns paginated command audit entries with optional filters.
//
// Query parameters:
//   - kind: filter by command kind token (SET_RUN_MODE, ...)
//   - source: filter by source (api, mqtt)
//   - card_id: filter by target card
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Kind:   q.Get("kind"),
		Source: q.Get("source"),
	}

	if v := q.Get("card_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "card_id must be an integer")
			return
		}
		filter.CardID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
