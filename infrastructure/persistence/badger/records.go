package badger

import (
	"encoding/json"
	"time"

	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
)

const (
	discussionPrefix = "disc/"
	operationPrefix  = "op/"
	childPrefix      = "child/"
	memberPrefix     = "member/"
)

func discussionKey(id string) []byte { return []byte(discussionPrefix + id) }
func operationKey(id string) []byte  { return []byte(operationPrefix + id) }

// childKey indexes an operation under its parent.
func childKey(parentID, childID string) []byte {
	return []byte(childPrefix + parentID + "/" + childID)
}

// memberKey indexes an operation under its discussion.
func memberKey(discussionID, opID string) []byte {
	return []byte(memberPrefix + discussionID + "/" + opID)
}

// Decimals are kept as their canonical strings so nothing is lost on the
// way through JSON.
type discussionRecord struct {
	ID            valueobjects.DiscussionID `json:"id"`
	Title         string                    `json:"title"`
	StartingValue valueobjects.Decimal      `json:"starting_value"`
	IsEnded       bool                      `json:"is_ended"`
	EndedAt       *time.Time                `json:"ended_at,omitempty"`
	CreatedBy     string                    `json:"created_by"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

type operationRecord struct {
	ID           valueobjects.OperationID   `json:"id"`
	DiscussionID valueobjects.DiscussionID  `json:"discussion_id"`
	ParentID     *valueobjects.OperationID  `json:"parent_id,omitempty"`
	Kind         valueobjects.OperationKind `json:"kind"`
	Operand      valueobjects.Decimal       `json:"operand"`
	BeforeValue  valueobjects.Decimal       `json:"before_value"`
	AfterValue   valueobjects.Decimal       `json:"after_value"`
	Depth        int                        `json:"depth"`
	Title        string                     `json:"title,omitempty"`
	CreatedBy    string                     `json:"created_by"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

func encodeDiscussion(d *entities.Discussion) ([]byte, error) {
	return json.Marshal(discussionRecord(d.State()))
}

func decodeDiscussion(data []byte) (*entities.Discussion, error) {
	var rec discussionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return entities.ReconstructDiscussion(entities.DiscussionState(rec)), nil
}

func encodeOperation(op *entities.Operation) ([]byte, error) {
	return json.Marshal(operationRecord(op.State()))
}

func decodeOperation(data []byte) (*entities.Operation, error) {
	var rec operationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return entities.ReconstructOperation(entities.OperationState(rec)), nil
}
