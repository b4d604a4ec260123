package card

// Operator is a condition test applied to a source card's signals.
type Operator uint8

const (
	OpAlwaysTrue Operator = iota
	OpAlwaysFalse
	OpLogicalTrue
	OpLogicalFalse
	OpPhysicalOn
	OpPhysicalOff
	OpTriggered
	OpTriggerCleared
	OpGT
	OpLT
	OpEQ
	OpNEQ
	OpGTE
	OpLTE
	OpRunning
	OpFinished
	OpStopped
)

var operatorNames = []string{
	"ALWAYS_TRUE", "ALWAYS_FALSE",
	"LOGICAL_TRUE", "LOGICAL_FALSE",
	"PHYSICAL_ON", "PHYSICAL_OFF",
	"TRIGGERED", "TRIGGER_CLEARED",
	"GT", "LT", "EQ", "NEQ", "GTE", "LTE",
	"RUNNING", "FINISHED", "STOPPED",
}

func (o Operator) String() string { return tokenName(operatorNames, uint8(o)) }

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool { return int(o) < len(operatorNames) }

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) { return marshalToken("operator", operatorNames, uint8(o)) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(b []byte) error {
	return unmarshalToken("operator", operatorNames, b, (*uint8)(o))
}

// OperatorKind groups operators by the signal they read.
type OperatorKind uint8

const (
	KindConstant OperatorKind = iota
	KindBoolean
	KindNumeric
	KindMission
)

// Kind returns the signal kind o reads.
func (o Operator) Kind() OperatorKind {
	switch {
	case o <= OpAlwaysFalse:
		return KindConstant
	case o <= OpTriggerCleared:
		return KindBoolean
	case o <= OpLTE:
		return KindNumeric
	default:
		return KindMission
	}
}

// OperatorLegal reports whether o may target a card of family f.
func OperatorLegal(f Family, o Operator) bool {
	if !f.Valid() || !o.Valid() {
		return false
	}
	switch o.Kind() {
	case KindConstant:
		return true
	case KindBoolean:
		return f.HasBooleans()
	case KindNumeric:
		return f.HasNumeric()
	default:
		return f.IsMission()
	}
}

// Combiner joins the two clauses of a ConditionBlock.
type Combiner uint8

const (
	CombineNone Combiner = iota
	CombineAnd
	CombineOr
)

var combinerNames = []string{"NONE", "AND", "OR"}

func (c Combiner) String() string { return tokenName(combinerNames, uint8(c)) }

// Valid reports whether c is a known combiner.
func (c Combiner) Valid() bool { return int(c) < len(combinerNames) }

// MarshalText implements encoding.TextMarshaler.
func (c Combiner) MarshalText() ([]byte, error) { return marshalToken("combiner", combinerNames, uint8(c)) }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Combiner) UnmarshalText(b []byte) error {
	return unmarshalToken("combiner", combinerNames, b, (*uint8)(c))
}

// Clause is one (source, operator, threshold) test.
type Clause struct {
	Source    int      `json:"source" yaml:"source"`
	Op        Operator `json:"op" yaml:"op"`
	Threshold uint32   `json:"threshold" yaml:"threshold"`
}

// ConditionBlock is a Set or Reset gate. B is only consulted when Combiner
// is not CombineNone.
type ConditionBlock struct {
	A        Clause   `json:"a" yaml:"a"`
	B        Clause   `json:"b" yaml:"b"`
	Combiner Combiner `json:"combiner" yaml:"combiner"`
}

// Never returns a block that always evaluates false.
func Never() ConditionBlock {
	return ConditionBlock{A: Clause{Op: OpAlwaysFalse}, B: Clause{Op: OpAlwaysFalse}}
}

// Always returns a block that always evaluates true.
func Always() ConditionBlock {
	return ConditionBlock{A: Clause{Op: OpAlwaysTrue}, B: Clause{Op: OpAlwaysFalse}}
}

// When returns a single-clause block.
func When(source int, op Operator, threshold uint32) ConditionBlock {
	return ConditionBlock{
		A: Clause{Source: source, Op: op, Threshold: threshold},
		B: Clause{Op: OpAlwaysFalse},
	}
}
