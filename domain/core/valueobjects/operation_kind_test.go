package valueobjects

import (
	"errors"
	"testing"

	pkgerrors "calctree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperationKind(t *testing.T) {
	tests := []struct {
		input string
		want  OperationKind
	}{
		{"ADD", KindAdd},
		{"subtract", KindSubtract},
		{" Multiply ", KindMultiply},
		{"divide", KindDivide},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOperationKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOperationKind_Invalid(t *testing.T) {
	_, err := ParseOperationKind("modulo")

	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidOperationKind))
	domErr := pkgerrors.GetDomainError(err)
	assert.Equal(t, "Invalid operation type: modulo", domErr.Message)
	assert.Equal(t, AllOperationKinds, domErr.Details["allowed"])
}

func TestOperationKind_Symbol(t *testing.T) {
	symbols := make([]string, 0, len(AllOperationKinds))
	for _, k := range AllOperationKinds {
		assert.True(t, k.IsValid())
		symbols = append(symbols, k.Symbol())
	}
	assert.Equal(t, []string{"+", "-", "*", "/"}, symbols)
	assert.Equal(t, "?", OperationKind("X").Symbol())
}
