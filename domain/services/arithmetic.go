// Package services holds the pure parts of the recalculation engine: the
// evaluator, the depth guard and the topological sequencer. Nothing here
// touches storage.
package services

import (
	"calctree/domain/core/valueobjects"
	pkgerrors "calctree/pkg/errors"
)

// ValidateStep checks the preconditions Evaluate enforces without computing
// anything, so callers can reject a change before mutating state.
func ValidateStep(kind valueobjects.OperationKind, operand valueobjects.Decimal) error {
	switch kind {
	case valueobjects.KindAdd, valueobjects.KindSubtract, valueobjects.KindMultiply:
		return nil
	case valueobjects.KindDivide:
		if operand.IsZero() {
			return pkgerrors.DivisionByZero()
		}
		return nil
	default:
		return pkgerrors.InvalidOperationKind(string(kind))
	}
}

// Evaluate applies kind to before and operand.
func Evaluate(before valueobjects.Decimal, kind valueobjects.OperationKind, operand valueobjects.Decimal) (valueobjects.Decimal, error) {
	if err := ValidateStep(kind, operand); err != nil {
		return valueobjects.Decimal{}, err
	}

	var (
		result valueobjects.Decimal
		err    error
	)
	switch kind {
	case valueobjects.KindAdd:
		result, err = before.Add(operand)
	case valueobjects.KindSubtract:
		result, err = before.Sub(operand)
	case valueobjects.KindMultiply:
		result, err = before.Mul(operand)
	case valueobjects.KindDivide:
		result, err = before.Quo(operand)
	}
	if err != nil {
		return valueobjects.Decimal{}, pkgerrors.Validation("arithmetic result out of range").
			WithDetail("kind", string(kind)).
			WithCause(err)
	}
	return result, nil
}
