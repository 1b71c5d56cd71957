package valueobjects

import (
	"strings"

	pkgerrors "calctree/pkg/errors"
)

// OperationKind is the arithmetic step an operation applies.
type OperationKind string

const (
	KindAdd      OperationKind = "ADD"
	KindSubtract OperationKind = "SUBTRACT"
	KindMultiply OperationKind = "MULTIPLY"
	KindDivide   OperationKind = "DIVIDE"
)

// AllOperationKinds lists every kind the evaluator understands.
var AllOperationKinds = []OperationKind{KindAdd, KindSubtract, KindMultiply, KindDivide}

// ParseOperationKind accepts any casing of a known kind.
func ParseOperationKind(s string) (OperationKind, error) {
	kind := OperationKind(strings.ToUpper(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", pkgerrors.InvalidOperationKind(s).WithDetail("allowed", AllOperationKinds)
	}
	return kind, nil
}

// IsValid reports whether k is one of the four arithmetic kinds.
func (k OperationKind) IsValid() bool {
	switch k {
	case KindAdd, KindSubtract, KindMultiply, KindDivide:
		return true
	default:
		return false
	}
}

func (k OperationKind) String() string { return string(k) }

// Symbol is the infix operator used when rendering a step.
func (k OperationKind) Symbol() string {
	switch k {
	case KindAdd:
		return "+"
	case KindSubtract:
		return "-"
	case KindMultiply:
		return "*"
	case KindDivide:
		return "/"
	default:
		return "?"
	}
}
