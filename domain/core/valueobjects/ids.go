package valueobjects

import (
	pkgerrors "calctree/pkg/errors"

	"github.com/google/uuid"
)

// DiscussionID identifies a discussion.
type DiscussionID struct {
	value string
}

// NewDiscussionID creates a new random DiscussionID
func NewDiscussionID() DiscussionID {
	return DiscussionID{value: uuid.New().String()}
}

// NewDiscussionIDFromString parses any form uuid.Parse accepts and keeps the
// canonical lowercase form.
func NewDiscussionIDFromString(id string) (DiscussionID, error) {
	canonical, err := parseID(id, "discussion")
	if err != nil {
		return DiscussionID{}, err
	}
	return DiscussionID{value: canonical}, nil
}

func (id DiscussionID) String() string { return id.value }

// Equals checks if two DiscussionIDs are equal
func (id DiscussionID) Equals(other DiscussionID) bool { return id.value == other.value }

// IsZero checks if the DiscussionID is the zero value
func (id DiscussionID) IsZero() bool { return id.value == "" }

// MarshalText implements encoding.TextMarshaler
func (id DiscussionID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *DiscussionID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = DiscussionID{}
		return nil
	}
	parsed, err := NewDiscussionIDFromString(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// OperationID identifies an operation node.
type OperationID struct {
	value string
}

// NewOperationID creates a new random OperationID
func NewOperationID() OperationID {
	return OperationID{value: uuid.New().String()}
}

// NewOperationIDFromString parses any form uuid.Parse accepts and keeps the
// canonical lowercase form.
func NewOperationIDFromString(id string) (OperationID, error) {
	canonical, err := parseID(id, "operation")
	if err != nil {
		return OperationID{}, err
	}
	return OperationID{value: canonical}, nil
}

func (id OperationID) String() string { return id.value }

// Equals checks if two OperationIDs are equal
func (id OperationID) Equals(other OperationID) bool { return id.value == other.value }

// IsZero checks if the OperationID is the zero value
func (id OperationID) IsZero() bool { return id.value == "" }

// MarshalText implements encoding.TextMarshaler
func (id OperationID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *OperationID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = OperationID{}
		return nil
	}
	parsed, err := NewOperationIDFromString(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func parseID(id, kind string) (string, error) {
	if id == "" {
		return "", pkgerrors.Validation(kind + " ID cannot be empty").WithDetail("field", kind+"Id")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", pkgerrors.Validation(kind + " ID must be a valid UUID").
			WithDetail("field", kind+"Id").
			WithCause(err)
	}
	return parsed.String(), nil
}
