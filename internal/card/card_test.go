package card

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

var testLayout = Layout{DI: 2, DO: 2, AI: 1, SIO: 1, Math: 1, RTC: 1}

func TestLayoutBoundaries(t *testing.T) {
	l := testLayout
	wantStart := map[Family]int{
		FamilyDI: 0, FamilyDO: 2, FamilyAI: 4, FamilySIO: 5, FamilyMath: 6, FamilyRTC: 7,
	}
	for f, want := range wantStart {
		if got := l.Start(f); got != want {
			t.Errorf("Start(%s) = %d, want %d", f, got, want)
		}
	}
	if l.Total() != 8 {
		t.Errorf("Total() = %d, want 8", l.Total())
	}

	tests := []struct {
		id     int
		family Family
		index  int
		ok     bool
	}{
		{0, FamilyDI, 0, true},
		{1, FamilyDI, 1, true},
		{3, FamilyDO, 1, true},
		{4, FamilyAI, 0, true},
		{5, FamilySIO, 0, true},
		{6, FamilyMath, 0, true},
		{7, FamilyRTC, 0, true},
		{8, 0, 0, false},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		f, idx, ok := l.Locate(tt.id)
		if ok != tt.ok || (ok && (f != tt.family || idx != tt.index)) {
			t.Errorf("Locate(%d) = %s,%d,%v want %s,%d,%v", tt.id, f, idx, ok, tt.family, tt.index, tt.ok)
		}
		if ok && l.ID(f, idx) != tt.id {
			t.Errorf("ID(%s,%d) = %d, want %d", f, idx, l.ID(f, idx), tt.id)
		}
	}
}

func TestLayoutValidate(t *testing.T) {
	if err := (Layout{}).Validate(); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("empty layout: got %v, want ErrInvalidLayout", err)
	}
	if err := (Layout{DI: -1, DO: 2}).Validate(); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("negative count: got %v, want ErrInvalidLayout", err)
	}
	if err := (Layout{DI: MaxCards + 1}).Validate(); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("oversized: got %v, want ErrInvalidLayout", err)
	}
	if err := testLayout.Validate(); err != nil {
		t.Errorf("valid layout: %v", err)
	}
}

func TestOperatorLegal(t *testing.T) {
	tests := []struct {
		family Family
		op     Operator
		want   bool
	}{
		{FamilyAI, OpAlwaysTrue, true},
		{FamilyRTC, OpAlwaysFalse, true},
		{FamilyDI, OpLogicalTrue, true},
		{FamilyAI, OpLogicalTrue, false},
		{FamilyAI, OpPhysicalOn, false},
		{FamilyMath, OpTriggered, true},
		{FamilyAI, OpGT, true},
		{FamilyRTC, OpGT, false},
		{FamilyDI, OpEQ, true},
		{FamilyDO, OpRunning, true},
		{FamilySIO, OpFinished, true},
		{FamilyDI, OpStopped, false},
		{FamilyMath, OpRunning, false},
		{Family(9), OpAlwaysTrue, false},
		{FamilyDO, Operator(99), false},
	}
	for _, tt := range tests {
		if got := OperatorLegal(tt.family, tt.op); got != tt.want {
			t.Errorf("OperatorLegal(%s, %s) = %v, want %v", tt.family, tt.op, got, tt.want)
		}
	}
}

func TestValidateDefaultCards(t *testing.T) {
	cards := DefaultCards(testLayout)
	if len(cards) != testLayout.Total() {
		t.Fatalf("DefaultCards() returned %d cards, want %d", len(cards), testLayout.Total())
	}
	if err := Validate(cards, testLayout); err != nil {
		t.Fatalf("Validate(DefaultCards) error = %v", err)
	}
	if got := LayoutOf(cards); got != testLayout {
		t.Errorf("LayoutOf() = %+v, want %+v", got, testLayout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cards []Card) []Card
		wantErr error
	}{
		{
			name:    "wrong length",
			mutate:  func(c []Card) []Card { return c[:3] },
			wantErr: ErrLayoutMismatch,
		},
		{
			name:    "id out of order",
			mutate:  func(c []Card) []Card { c[1].ID = 5; return c },
			wantErr: ErrLayoutMismatch,
		},
		{
			name:    "family mismatch",
			mutate:  func(c []Card) []Card { c[2].Family = FamilyAI; return c },
			wantErr: ErrLayoutMismatch,
		},
		{
			name:    "duplicate DI channel",
			mutate:  func(c []Card) []Card { c[1].Channel = 0; return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "SIO with hardware channel",
			mutate:  func(c []Card) []Card { c[5].Channel = 3; return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "alpha too large",
			mutate:  func(c []Card) []Card { c[4].AI.Alpha = 101; return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "source out of range",
			mutate:  func(c []Card) []Card { c[2].Set = When(42, OpLogicalTrue, 0); return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "boolean op on AI",
			mutate:  func(c []Card) []Card { c[2].Set = When(4, OpLogicalTrue, 0); return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "mission op on DI",
			mutate:  func(c []Card) []Card { c[3].Reset = When(0, OpRunning, 0); return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name: "clause B checked with combiner",
			mutate: func(c []Card) []Card {
				c[2].Set = ConditionBlock{
					A:        Clause{Source: 0, Op: OpLogicalTrue},
					B:        Clause{Source: 7, Op: OpGT},
					Combiner: CombineAnd,
				}
				return c
			},
			wantErr: ErrInvalidConfig,
		},
		{
			name: "clause B ignored without combiner",
			mutate: func(c []Card) []Card {
				c[2].Set = ConditionBlock{
					A: Clause{Source: 0, Op: OpLogicalTrue},
					B: Clause{Source: 99, Op: OpGT},
				}
				return c
			},
			wantErr: nil,
		},
		{
			name:    "rtc set enabled",
			mutate:  func(c []Card) []Card { c[7].Set = Always(); return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "math operand from rtc",
			mutate:  func(c []Card) []Card { c[6].Math.InputA = Operand{Source: 7}; return c },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "math operand from ai",
			mutate:  func(c []Card) []Card { c[6].Math.InputA = Operand{Source: 4}; return c },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := tt.mutate(DefaultCards(testLayout))
			err := Validate(cards, testLayout)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSafeSignals(t *testing.T) {
	do := Card{Family: FamilyDO, Invert: true}
	if s := SafeSignals(&do); !s.PhysicalState || s.State != StateIdle {
		t.Errorf("DO safe signals = %+v, want physical=true state=IDLE", s)
	}
	m := Card{Family: FamilyMath, Math: MathSettings{Fallback: 7}}
	if s := SafeSignals(&m); s.CurrentValue != 7 || s.State != StateNone {
		t.Errorf("MATH safe signals = %+v, want value=7 state=NONE", s)
	}
	ai := Card{Family: FamilyAI}
	if s := SafeSignals(&ai); s.State != StateStreaming {
		t.Errorf("AI safe state = %s, want STREAMING", s.State)
	}
}

func TestAlphaFromLegacy(t *testing.T) {
	tests := []struct{ in, want uint32 }{
		{0, 0}, {1000, 100}, {505, 50}, {5000, 100},
	}
	for _, tt := range tests {
		if got := AlphaFromLegacy(tt.in); got != tt.want {
			t.Errorf("AlphaFromLegacy(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	var op Operator
	if err := op.UnmarshalText([]byte("trigger_cleared")); err != nil || op != OpTriggerCleared {
		t.Errorf("UnmarshalText(trigger_cleared) = %s, %v", op, err)
	}
	if err := op.UnmarshalText([]byte("BETWEEN")); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("UnmarshalText(BETWEEN) error = %v, want ErrUnknownToken", err)
	}
	if _, err := Family(42).MarshalText(); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("Family(42).MarshalText() error = %v, want ErrUnknownToken", err)
	}

	block := ConditionBlock{
		A:        Clause{Source: 3, Op: OpGTE, Threshold: 10},
		B:        Clause{Source: 2, Op: OpRunning},
		Combiner: CombineOr,
	}
	data, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"a":{"source":3,"op":"GTE","threshold":10},"b":{"source":2,"op":"RUNNING","threshold":0},"combiner":"OR"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	var settings OutputSettings
	if err := yaml.Unmarshal([]byte("mode: gated\non_delay_ms: 20\n"), &settings); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if settings.Mode != ModeGated || settings.OnDelayMs != 20 {
		t.Errorf("yaml settings = %+v", settings)
	}
}
