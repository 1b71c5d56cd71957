package valueobjects

import (
	"strings"
	"testing"

	"calctree/domain/config"
	pkgerrors "calctree/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestNewDiscussionTitle(t *testing.T) {
	cfg := config.DefaultDomainConfig()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"trimmed", "  Budget  ", "Budget", false},
		{"minimum length", "abc", "abc", false},
		{"too short", "ab", "", true},
		{"only spaces", "     ", "", true},
		{"maximum length", strings.Repeat("x", 100), strings.Repeat("x", 100), false},
		{"too long", strings.Repeat("x", 101), "", true},
		{"counts runes not bytes", strings.Repeat("é", 100), strings.Repeat("é", 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDiscussionTitle(tt.input, cfg)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewOperationTitle(t *testing.T) {
	got, err := NewOperationTitle("   ", nil)
	assert.NoError(t, err)
	assert.Empty(t, got)

	got, err = NewOperationTitle(" Tip ", nil)
	assert.NoError(t, err)
	assert.Equal(t, "Tip", got)

	_, err = NewOperationTitle(strings.Repeat("y", 201), nil)
	assert.True(t, pkgerrors.IsValidation(err))
}
