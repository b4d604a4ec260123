package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
)

// seqHeader carries the sequence number of the snapshot a response was built from.
const seqHeader = "X-Snapshot-Seq"

// CardView is one card with its runtime overrides, as served by
// GET /cards/{id}.
type CardView struct {
	Seq        uint64        `json:"seq"`
	Card       card.Card     `json:"card"`
	Force      control.Force `json:"force"`
	Masked     bool          `json:"masked"`
	Breakpoint bool          `json:"breakpoint"`
	Eval       control.Eval  `json:"eval"`
}

// handleGetSnapshot returns the latest published snapshot.
//
// Query parameters:
//   - since: a sequence number the caller already holds; 304 when unchanged
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Latest()
	if snap == nil {
		writeUnavailable(w, "no snapshot published yet")
		return
	}

	if v := r.URL.Query().Get("since"); v != "" {
		since, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "since must be a sequence number")
			return
		}
		if since == snap.Seq {
			w.Header().Set(seqHeader, strconv.FormatUint(snap.Seq, 10))
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set(seqHeader, strconv.FormatUint(snap.Seq, 10))
	writeJSON(w, http.StatusOK, snap)
}

// handleGetCard returns one card from the latest snapshot.
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "card id must be an integer")
		return
	}

	snap := s.engine.Latest()
	if snap == nil {
		writeUnavailable(w, "no snapshot published yet")
		return
	}

	c, ok := snap.Card(id)
	if !ok {
		writeNotFound(w, "card not found")
		return
	}

	view := CardView{Seq: snap.Seq, Card: c}
	if id < len(snap.Forces) {
		view.Force = snap.Forces[id]
	}
	if id < len(snap.Masks) {
		view.Masked = snap.Masks[id]
	}
	if id < len(snap.Breakpoints) {
		view.Breakpoint = snap.Breakpoints[id]
	}
	if id < len(snap.Eval) {
		view.Eval = snap.Eval[id]
	}

	w.Header().Set(seqHeader, strconv.FormatUint(snap.Seq, 10))
	writeJSON(w, http.StatusOK, view)
}
