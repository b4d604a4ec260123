package cardstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/card"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/rtc"
)

// Logger is the logging interface used by the Registry.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Engine is the part of the controller a config apply needs.
type Engine interface {
	Layout() card.Layout
	ApplyConfig(ctx context.Context, cards []card.Card) error
}

// ChannelSink receives the schedule channels of the active revision.
type ChannelSink interface {
	SetChannels(chs []rtc.Channel)
}

// Registry caches the active revision and serialises applies.
//
// All public methods are thread-safe.
type Registry struct {
	repo   Repository
	logger Logger

	applyMu sync.Mutex

	mu     sync.RWMutex
	active *Revision
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load caches the latest stored revision. When none exists the factory
// revision for layout is cached instead; it is not persisted. A stored
// revision that does not fit layout is an error.
func (r *Registry) Load(ctx context.Context, layout card.Layout) (*Revision, error) {
	rev, err := r.repo.Latest(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		rev = Default(layout)
		r.logger.Info("no stored configuration, using factory profile", "cards", len(rev.Cards))
	case err != nil:
		return nil, fmt.Errorf("loading latest revision: %w", err)
	default:
		if err := rev.Validate(layout); err != nil {
			return nil, fmt.Errorf("stored revision %s: %w", rev.ID, err)
		}
		r.logger.Info("configuration loaded", "revision", rev.ID, "source", rev.Source, "cards", len(rev.Cards))
	}

	r.mu.Lock()
	r.active = rev.Clone()
	r.mu.Unlock()
	return rev, nil
}

// Active returns a copy of the cached revision, or false before Load.
func (r *Registry) Active() (*Revision, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil, false
	}
	return r.active.Clone(), true
}

// Apply validates rev, hands its cards to the engine, stores it and, once
// the engine accepted it, passes its channels to sink. When the engine
// rejects the apply nothing is stored and the previous revision stays
// active. A storage failure after a successful apply is returned; the
// engine keeps the new configuration.
//
// Parameters:
//   - ctx: Context for the engine pause and the store write
//   - eng: The running controller
//   - sink: Receives the RTC channels; may be nil
//   - rev: The candidate revision; ID and CreatedAt are assigned on save
//
// Returns:
//   - *Revision: The stored revision, also returned alongside a storage error
//   - error: Validation, engine (e.g. pause timeout) or storage failure
func (r *Registry) Apply(ctx context.Context, eng Engine, sink ChannelSink, rev Revision) (*Revision, error) {
	if rev.Channels == nil {
		rev.Channels = []rtc.Channel{}
	}
	if err := rev.Validate(eng.Layout()); err != nil {
		return nil, err
	}

	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	// Engine first: a rejected apply must leave no trace in the store
	next := rev.Clone()
	if err := eng.ApplyConfig(ctx, next.Cards); err != nil {
		return nil, fmt.Errorf("applying configuration: %w", err)
	}
	if sink != nil {
		sink.SetChannels(next.Channels)
	}

	// Persist; the repository assigns ID and CreatedAt
	next.ID, next.CreatedAt = "", time.Time{}
	saveErr := r.repo.Save(ctx, next)

	r.mu.Lock()
	r.active = next.Clone()
	r.mu.Unlock()

	if saveErr != nil {
		r.logger.Warn("configuration applied but not stored", "error", saveErr)
		return next.Clone(), fmt.Errorf("storing revision: %w", saveErr)
	}
	r.logger.Info("configuration revision stored", "revision", next.ID, "source", next.Source)
	return next.Clone(), nil
}

// History lists stored revisions, most recent first.
func (r *Registry) History(ctx context.Context, limit int) ([]Summary, error) {
	return r.repo.List(ctx, limit)
}
