package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
)

// Command sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Submitter is the controller's submit-with-reason entry point.
type Submitter interface {
	SubmitCommand(cmd control.Command) error
}

// Logger is the logging interface used by the Auditor.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Auditor submits commands and records each submission.
type Auditor struct {
	sub    Submitter
	repo   Repository
	logger Logger
}

// NewAuditor creates an Auditor. A nil repo submits without recording.
func NewAuditor(sub Submitter, repo Repository) *Auditor {
	return &Auditor{sub: sub, repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (a *Auditor) SetLogger(l Logger) {
	a.logger = l
}

// Submit assigns cmd an ID if it has none, submits it and records the
// outcome. It returns the command ID and the submit error. A failure to
// write the audit row is logged and never rejects the command.
func (a *Auditor) Submit(ctx context.Context, cmd control.Command, source, actor string) (string, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	err := a.sub.SubmitCommand(cmd)

	if a.repo != nil {
		e := FromCommand(cmd, source, actor, err)
		if rerr := a.repo.Create(ctx, &e); rerr != nil {
			a.logger.Warn("recording command audit failed", "command_id", cmd.ID, "error", rerr)
		}
	}
	return cmd.ID, err
}

// FromCommand builds the audit entry for one submission.
func FromCommand(cmd control.Command, source, actor string, submitErr error) Entry {
	payload, err := json.Marshal(cmd)
	if err != nil {
		payload = []byte("{}")
	}
	e := Entry{
		CommandID: cmd.ID,
		Kind:      cmd.Kind.String(),
		CardID:    cmd.CardID,
		Source:    source,
		Actor:     actor,
		Accepted:  submitErr == nil,
		Payload:   payload,
	}
	if submitErr != nil {
		e.Error = submitErr.Error()
	}
	return e
}
