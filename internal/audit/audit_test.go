package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/control"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/infrastructure/database"
	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

type mockSubmitter struct {
	got []control.Command
	err error
}

func (m *mockSubmitter) SubmitCommand(cmd control.Command) error {
	m.got = append(m.got, cmd)
	return m.err
}

type failingRepo struct{}

func (failingRepo) Create(context.Context, *Entry) error { return errors.New("disk full") }
func (failingRepo) List(context.Context, Filter) (*ListResult, error) {
	return nil, errors.New("disk full")
}

type captureLogger struct{ warns int }

func (l *captureLogger) Warn(string, ...any) { l.warns++ }

func TestCreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entries := []Entry{
		FromCommand(control.SetTestMode(true), SourceAPI, "op-1", nil),
		FromCommand(control.SetOutputMask(3, true), SourceMQTT, "", nil),
		FromCommand(control.SetOutputMask(4, true), SourceAPI, "op-1", control.ErrTestModeInactive),
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if entries[i].ID == "" || entries[i].CreatedAt.IsZero() {
			t.Errorf("Create() did not fill ID/CreatedAt: %+v", entries[i])
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Entries) != 3 || all.Limit != defaultLimit {
		t.Fatalf("List() = total %d, len %d, limit %d", all.Total, len(all.Entries), all.Limit)
	}
	if all.Entries[0].CardID != 4 || all.Entries[0].Accepted || all.Entries[0].Error == "" {
		t.Errorf("most recent entry = %+v", all.Entries[0])
	}

	card := 3
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by kind", Filter{Kind: "SET_OUTPUT_MASK"}, 2},
		{"by source", Filter{Source: SourceMQTT}, 1},
		{"by card", Filter{CardID: &card}, 1},
		{"paged", Filter{Limit: 1, Offset: 2}, 1},
		{"no match", Filter{Kind: "STEP_ONCE"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(res.Entries) != tt.want {
				t.Errorf("entries = %d, want %d", len(res.Entries), tt.want)
			}
		})
	}
}

func TestFromCommandPayload(t *testing.T) {
	cmd := control.SetInputForce(2, control.ForceHigh, 0)
	e := FromCommand(cmd, SourceAPI, "op", nil)

	var decoded control.Command
	if err := json.Unmarshal(e.Payload, &decoded); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if decoded.Kind != control.CmdSetInputForce || decoded.Force != control.ForceHigh || decoded.CardID != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if e.Kind != "SET_INPUT_FORCE" || !e.Accepted || e.CommandID != cmd.ID {
		t.Errorf("entry = %+v", e)
	}
}

func TestAuditorSubmit(t *testing.T) {
	repo := newTestRepo(t)
	sub := &mockSubmitter{}
	a := NewAuditor(sub, repo)

	id, err := a.Submit(context.Background(), control.Command{Kind: control.CmdStepOnce}, SourceAPI, "op")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id == "" || sub.got[0].ID != id {
		t.Errorf("command id = %q, submitted %q", id, sub.got[0].ID)
	}

	sub.err = control.ErrQueueFull
	if _, err := a.Submit(context.Background(), control.StepOnce(), SourceMQTT, ""); !errors.Is(err, control.ErrQueueFull) {
		t.Errorf("Submit() error = %v, want ErrQueueFull", err)
	}

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("audited = %d, want 2", res.Total)
	}
	if res.Entries[0].Accepted || res.Entries[1].CommandID != id {
		t.Errorf("entries = %+v", res.Entries)
	}
}

func TestAuditorRepoFailureDoesNotReject(t *testing.T) {
	logger := &captureLogger{}
	a := NewAuditor(&mockSubmitter{}, failingRepo{})
	a.SetLogger(logger)

	if _, err := a.Submit(context.Background(), control.StepOnce(), SourceAPI, ""); err != nil {
		t.Errorf("Submit() error = %v", err)
	}
	if logger.warns != 1 {
		t.Errorf("warns = %d, want 1", logger.warns)
	}
}
