package control

import (
	"errors"
	"strings"
	"testing"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/scan"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		strict  bool
		want    Command
		wantErr error
	}{
		{
			name: "explicit run mode",
			body: `{"kind":"SET_RUN_MODE","run_mode":"RUN_SLOW"}`,
			want: Command{Kind: CmdSetRunMode, RunMode: scan.RunSlow},
		},
		{
			name: "force",
			body: `{"id":"f1","kind":"set_input_force","card_id":2,"force":"FORCED_VALUE","value":9}`,
			want: Command{ID: "f1", Kind: CmdSetInputForce, CardID: 2, Force: ForceValue, Value: 9},
		},
		{name: "empty object", body: `{}`, wantErr: ErrMissingKind},
		{name: "null kind", body: `{"kind":null,"enabled":true}`, wantErr: ErrMissingKind},
		{name: "mode without kind", body: `{"run_mode":"RUN_NORMAL"}`, wantErr: ErrMissingKind},
		{name: "unknown kind", body: `{"kind":"REBOOT"}`, wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand(strings.NewReader(tt.body), tt.strict)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeCommand() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeCommand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeCommand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeCommandStrict(t *testing.T) {
	body := `{"kind":"STEP_ONCE","card":3}`
	if _, err := DecodeCommand(strings.NewReader(body), false); err != nil {
		t.Errorf("lenient decode error = %v", err)
	}
	if _, err := DecodeCommand(strings.NewReader(body), true); err == nil {
		t.Error("strict decode accepted an unknown field")
	}
}
