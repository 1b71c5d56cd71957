package utils

import (
	"testing"

	pkgerrors "calctree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	DiscussionID string  `json:"discussionId" validate:"required_without=ParentID"`
	ParentID     string  `json:"parentId"`
	Kind         string  `json:"operationType" validate:"required,opkind"`
	Note         *string `json:"note" validate:"omitempty,opkind"`
}

func TestValidateStruct(t *testing.T) {
	bad := "MODULO"
	good := "divide"

	tests := []struct {
		name      string
		in        sample
		wantField string
		wantMsg   string
	}{
		{"valid root", sample{DiscussionID: "d", Kind: "add"}, "", ""},
		{"valid child lower-case", sample{ParentID: "p", Kind: "Multiply", Note: &good}, "", ""},
		{"no anchor", sample{Kind: "ADD"}, "discussionId", "Either discussionId or parentID must be provided"},
		{"unknown kind", sample{DiscussionID: "d", Kind: "MOD"}, "operationType", "operationType must be one of: ADD SUBTRACT MULTIPLY DIVIDE"},
		{"missing kind", sample{DiscussionID: "d"}, "operationType", "operationType is required"},
		{"bad pointer kind", sample{DiscussionID: "d", Kind: "add", Note: &bad}, "note", "note must be one of: ADD SUBTRACT MULTIPLY DIVIDE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			verrs, ok := err.(*pkgerrors.ValidationErrors)
			require.True(t, ok)
			assert.Equal(t, []string{tt.wantMsg}, verrs.ToMap()[tt.wantField])
		})
	}
}
