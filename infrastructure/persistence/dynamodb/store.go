package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"calctree/application/ports"
	"calctree/domain/config"
	pkgerrors "calctree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Tables names the table and its two secondary indexes.
type Tables struct {
	TableName       string
	ParentIndex     string
	DiscussionIndex string
}

// Store implements ports.TxManager against a single DynamoDB table. Writes
// are buffered per transaction and committed with one TransactWriteItems
// call.
type Store struct {
	client   API
	tables   Tables
	maxItems int
	logger   *zap.Logger
}

// NewStore creates a DynamoDB-backed store
func NewStore(client API, tables Tables, cfg *config.DomainConfig, logger *zap.Logger) *Store {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:   client,
		tables:   tables,
		maxItems: cfg.MaxTransactItems,
		logger:   logger,
	}
}

// WithinTx implements ports.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uow := newUnitOfWork(s, false)
	if err := fn(ctx, uow); err != nil {
		return err
	}
	return s.commit(ctx, uow)
}

// View implements ports.TxManager.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, newUnitOfWork(s, true))
}

func (s *Store) commit(ctx context.Context, uow *unitOfWork) error {
	items, err := uow.transactItems(s.tables.TableName)
	if err != nil {
		return pkgerrors.NewInternalError("build transaction").WithCause(err)
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > s.maxItems {
		return pkgerrors.Validation(fmt.Sprintf("change touches %d items; a single transaction is limited to %d", len(items), s.maxItems)).
			WithDetail("items", len(items)).
			WithDetail("limit", s.maxItems)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					return pkgerrors.NewConflictError("concurrent modification detected").WithCause(err)
				}
			}
		}
		s.logger.Error("transaction failed", zap.Int("items", len(items)), zap.Error(err))
		return pkgerrors.NewDatabaseError("TransactWriteItems", err)
	}

	s.logger.Debug("transaction committed", zap.Int("items", len(items)))
	return nil
}

// queryAll drains a paginated query.
func (s *Store) queryAll(ctx context.Context, index string, kc expression.KeyConditionBuilder) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(kc).Build()
	if err != nil {
		return nil, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tables.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}

	var out []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
	}
	return out, nil
}

// scanEntities drains a scan filtered on EntityType.
func (s *Store) scanEntities(ctx context.Context, entityType string) ([]map[string]types.AttributeValue, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityType))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, err
	}
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(s.tables.TableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var out []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
	}
	return out, nil
}

func (s *Store) getItem(ctx context.Context, pk string) (map[string]types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.TableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: metadataSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return out.Item, nil
}
