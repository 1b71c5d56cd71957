package dynamodb

import (
	"fmt"
	"time"

	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Single-table layout:
//
//	discussion  PK=DISC#{id}  SK=METADATA
//	operation   PK=OP#{id}    SK=METADATA
//	            GSI1PK=PARENT#{parentId} GSI1SK={createdAt}#{id}   (children)
//	            GSI2PK=DISC#{discussionId} GSI2SK={createdAt}#{id} (membership)
const (
	metadataSK = "METADATA"

	entityDiscussion = "DISCUSSION"
	entityOperation  = "OPERATION"
)

func discussionPK(id string) string { return "DISC#" + id }
func operationPK(id string) string  { return "OP#" + id }
func parentPK(id string) string     { return "PARENT#" + id }

func sortKey(createdAt time.Time, id string) string {
	return createdAt.UTC().Format(time.RFC3339Nano) + "#" + id
}

// discussionItem represents the DynamoDB item structure for a discussion
type discussionItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	DiscussionID  string `dynamodbav:"DiscussionID"`
	Title         string `dynamodbav:"Title"`
	StartingValue string `dynamodbav:"StartingValue"`
	IsEnded       bool   `dynamodbav:"IsEnded"`
	EndedAt       string `dynamodbav:"EndedAt,omitempty"`
	CreatedBy     string `dynamodbav:"CreatedBy"`
	CreatedAt     string `dynamodbav:"CreatedAt"`
	UpdatedAt     string `dynamodbav:"UpdatedAt"`
}

// operationItem represents the DynamoDB item structure for an operation.
// Decimals are stored as canonical strings.
type operationItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	GSI1PK       string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK       string `dynamodbav:"GSI1SK,omitempty"`
	GSI2PK       string `dynamodbav:"GSI2PK"`
	GSI2SK       string `dynamodbav:"GSI2SK"`
	EntityType   string `dynamodbav:"EntityType"`
	OperationID  string `dynamodbav:"OperationID"`
	DiscussionID string `dynamodbav:"DiscussionID"`
	ParentID     string `dynamodbav:"ParentID,omitempty"`
	Kind         string `dynamodbav:"Kind"`
	Operand      string `dynamodbav:"Operand"`
	BeforeValue  string `dynamodbav:"BeforeValue"`
	AfterValue   string `dynamodbav:"AfterValue"`
	Depth        int    `dynamodbav:"Depth"`
	Title        string `dynamodbav:"Title,omitempty"`
	CreatedBy    string `dynamodbav:"CreatedBy"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return t, nil
}

func toDiscussionItem(s entities.DiscussionState) discussionItem {
	item := discussionItem{
		PK:            discussionPK(s.ID.String()),
		SK:            metadataSK,
		EntityType:    entityDiscussion,
		DiscussionID:  s.ID.String(),
		Title:         s.Title,
		StartingValue: s.StartingValue.String(),
		IsEnded:       s.IsEnded,
		CreatedBy:     s.CreatedBy,
		CreatedAt:     formatTime(s.CreatedAt),
		UpdatedAt:     formatTime(s.UpdatedAt),
	}
	if s.EndedAt != nil {
		item.EndedAt = formatTime(*s.EndedAt)
	}
	return item
}

func fromDiscussionItem(item discussionItem) (entities.DiscussionState, error) {
	var (
		s   entities.DiscussionState
		err error
	)
	if s.ID, err = valueobjects.NewDiscussionIDFromString(item.DiscussionID); err != nil {
		return s, err
	}
	if s.StartingValue, err = valueobjects.NewDecimalFromString(item.StartingValue); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseTime("CreatedAt", item.CreatedAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime("UpdatedAt", item.UpdatedAt); err != nil {
		return s, err
	}
	if item.EndedAt != "" {
		endedAt, err := parseTime("EndedAt", item.EndedAt)
		if err != nil {
			return s, err
		}
		s.EndedAt = &endedAt
	}
	s.Title = item.Title
	s.IsEnded = item.IsEnded
	s.CreatedBy = item.CreatedBy
	return s, nil
}

func toOperationItem(s entities.OperationState) operationItem {
	id := s.ID.String()
	item := operationItem{
		PK:           operationPK(id),
		SK:           metadataSK,
		GSI2PK:       discussionPK(s.DiscussionID.String()),
		GSI2SK:       sortKey(s.CreatedAt, id),
		EntityType:   entityOperation,
		OperationID:  id,
		DiscussionID: s.DiscussionID.String(),
		Kind:         string(s.Kind),
		Operand:      s.Operand.String(),
		BeforeValue:  s.BeforeValue.String(),
		AfterValue:   s.AfterValue.String(),
		Depth:        s.Depth,
		Title:        s.Title,
		CreatedBy:    s.CreatedBy,
		CreatedAt:    formatTime(s.CreatedAt),
		UpdatedAt:    formatTime(s.UpdatedAt),
	}
	if s.ParentID != nil {
		item.ParentID = s.ParentID.String()
		item.GSI1PK = parentPK(item.ParentID)
		item.GSI1SK = sortKey(s.CreatedAt, id)
	}
	return item
}

func fromOperationItem(item operationItem) (entities.OperationState, error) {
	var (
		s   entities.OperationState
		err error
	)
	if s.ID, err = valueobjects.NewOperationIDFromString(item.OperationID); err != nil {
		return s, err
	}
	if s.DiscussionID, err = valueobjects.NewDiscussionIDFromString(item.DiscussionID); err != nil {
		return s, err
	}
	if item.ParentID != "" {
		parent, err := valueobjects.NewOperationIDFromString(item.ParentID)
		if err != nil {
			return s, err
		}
		s.ParentID = &parent
	}
	if s.Kind, err = valueobjects.ParseOperationKind(item.Kind); err != nil {
		return s, err
	}
	decimals := []struct {
		dst *valueobjects.Decimal
		src string
	}{
		{&s.Operand, item.Operand},
		{&s.BeforeValue, item.BeforeValue},
		{&s.AfterValue, item.AfterValue},
	}
	for _, d := range decimals {
		if *d.dst, err = valueobjects.NewDecimalFromString(d.src); err != nil {
			return s, err
		}
	}
	if s.CreatedAt, err = parseTime("CreatedAt", item.CreatedAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime("UpdatedAt", item.UpdatedAt); err != nil {
		return s, err
	}
	s.Depth = item.Depth
	s.Title = item.Title
	s.CreatedBy = item.CreatedBy
	return s, nil
}

func unmarshalOperation(av map[string]types.AttributeValue) (entities.OperationState, error) {
	var item operationItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return entities.OperationState{}, err
	}
	return fromOperationItem(item)
}

func unmarshalDiscussion(av map[string]types.AttributeValue) (entities.DiscussionState, error) {
	var item discussionItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return entities.DiscussionState{}, err
	}
	return fromDiscussionItem(item)
}
