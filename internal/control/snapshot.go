package control

import (
	"sync"
	"time"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
)

// Force is the input override of one card.
type Force struct {
	Mode  ForceMode `json:"mode"`
	Value uint32    `json:"value"`
}

// Eval is the per-card condition result of the card's last execution.
// Override is set when the card's input is forced or its output masked.
type Eval struct {
	Set      bool `json:"set"`
	Reset    bool `json:"reset"`
	Override bool `json:"override"`
}

// Metrics are the engine counters published with each snapshot.
type Metrics struct {
	scan.Metrics

	Queue QueueStats `json:"queue"`

	CommandsApplied    uint64 `json:"commands_applied"`
	CommandsFailed     uint64 `json:"commands_failed"`
	LastApplyLatencyUs int64  `json:"last_apply_latency_us"`
	MaxApplyLatencyUs  int64  `json:"max_apply_latency_us"`
	ConfigApplies      uint64 `json:"config_applies"`
}

// Snapshot is a consistent copy of the engine state. A published snapshot
// is never modified; Clone it before changing anything.
type Snapshot struct {
	Seq         uint64       `json:"seq"`
	PublishedAt time.Time    `json:"published_at"`
	Layout      card.Layout  `json:"layout"`
	Cards       []card.Card  `json:"cards"`
	Forces      []Force      `json:"forces"`
	Masks       []bool       `json:"masks"`
	GlobalMask  bool         `json:"global_mask"`
	Breakpoints []bool       `json:"breakpoints"`
	Eval        []Eval       `json:"eval"`
	RunMode     scan.RunMode `json:"run_mode"`
	TestMode    bool         `json:"test_mode"`
	Paused      bool         `json:"paused"`
	Cursor      int          `json:"cursor"`
	Metrics     Metrics      `json:"metrics"`
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() Snapshot {
	cpy := *s
	cpy.Cards = card.CloneCards(s.Cards)
	cpy.Forces = cloneSlice(s.Forces)
	cpy.Masks = cloneSlice(s.Masks)
	cpy.Breakpoints = cloneSlice(s.Breakpoints)
	cpy.Eval = cloneSlice(s.Eval)
	return cpy
}

// Card returns the card with id, or false when id is out of range.
func (s *Snapshot) Card(id int) (card.Card, bool) {
	if id < 0 || id >= len(s.Cards) {
		return card.Card{}, false
	}
	return s.Cards[id], true
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// SharedSnapshot is the engine's publication point. The engine builds a new
// Snapshot outside the lock and Publish swaps it in, so the critical section
// on both sides is a pointer assignment.
type SharedSnapshot struct {
	mu  sync.Mutex
	cur *Snapshot
}

// Publish makes snap the current snapshot. The caller must not modify snap
// afterwards.
func (s *SharedSnapshot) Publish(snap *Snapshot) {
	s.mu.Lock()
	s.cur = snap
	s.mu.Unlock()
}

// Latest returns the current snapshot, which must be treated as read-only.
// It returns nil before the first publish.
func (s *SharedSnapshot) Latest() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Copy returns a deep copy of the current snapshot.
func (s *SharedSnapshot) Copy() Snapshot {
	cur := s.Latest()
	if cur == nil {
		return Snapshot{}
	}
	return cur.Clone()
}
