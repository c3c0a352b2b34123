// Package dynamo backs kv.Store with Amazon DynamoDB: a single-table,
// partition/sort-key store exposed through narrow, context-first methods.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/trelnex/accessd/internal/kv"
)

const (
	attrEntityName  = "entityName"
	attrSubjectName = "subjectName"
	attrCreatedAt   = "createdAt"

	// maxTransactItems is DynamoDB's actual TransactWriteItems ceiling;
	// callers that exceed it are chunked by the repository layer.
	maxTransactItems = 100

	maxRetries = 5
)

// Client is the subset of *dynamodb.Client this package calls, narrowed so
// tests can supply a fake.
type Client interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store implements kv.Store against a single DynamoDB table.
type Store struct {
	client Client
	table  string
}

// New returns a Store for the given table, using client for all calls.
func New(client Client, table string) *Store {
	return &Store{client: client, table: table}
}

func (s *Store) GetItem(ctx context.Context, entityName, subjectName string) (*kv.Row, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrEntityName:  &types.AttributeValueMemberS{Value: entityName},
			attrSubjectName: &types.AttributeValueMemberS{Value: subjectName},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, translate(err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return rowFromItem(out.Item), nil
}

func (s *Store) PutItemIfAbsent(ctx context.Context, row kv.Row) (kv.PutResult, error) {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                itemFromRow(row),
		ConditionExpression: aws.String(fmt.Sprintf("attribute_not_exists(%s)", attrSubjectName)),
	})
	if err == nil {
		return kv.PutResult{Inserted: true}, nil
	}
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return kv.PutResult{AlreadyPresent: true}, nil
	}
	return kv.PutResult{}, translate(err)
}

func (s *Store) DeleteItem(ctx context.Context, entityName, subjectName string) (kv.DeleteResult, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			attrEntityName:  &types.AttributeValueMemberS{Value: entityName},
			attrSubjectName: &types.AttributeValueMemberS{Value: subjectName},
		},
		ConditionExpression: aws.String(fmt.Sprintf("attribute_exists(%s)", attrSubjectName)),
	})
	if err == nil {
		return kv.DeleteResult{Deleted: true}, nil
	}
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return kv.DeleteResult{Absent: true}, nil
	}
	return kv.DeleteResult{}, translate(err)
}

func (s *Store) QueryByEntity(ctx context.Context, entityName, subjectPrefix string) ([]kv.Row, error) {
	keyCond := fmt.Sprintf("%s = :e", attrEntityName)
	values := map[string]types.AttributeValue{
		":e": &types.AttributeValueMemberS{Value: entityName},
	}
	if subjectPrefix != "" {
		keyCond += fmt.Sprintf(" AND begins_with(%s, :p)", attrSubjectName)
		values[":p"] = &types.AttributeValueMemberS{Value: subjectPrefix}
	}

	var rows []kv.Row
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeValues: values,
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, translate(err)
		}
		for _, item := range out.Items {
			rows = append(rows, *rowFromItem(item))
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return rows, nil
}

// ScanAll paginates through the entire table. It is used only by the RBAC
// repository's GetResources and should never be called from a hot path --
// a full scan has no partition bound.
func (s *Store) ScanAll(ctx context.Context) ([]kv.Row, error) {
	var rows []kv.Row
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, translate(err)
		}
		for _, item := range out.Items {
			rows = append(rows, *rowFromItem(item))
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EntityName != rows[j].EntityName {
			return rows[i].EntityName < rows[j].EntityName
		}
		return rows[i].SubjectName < rows[j].SubjectName
	})
	return rows, nil
}

func (s *Store) TransactWrite(ctx context.Context, ops []kv.WriteOp) error {
	if len(ops) > maxTransactItems {
		return fmt.Errorf("dynamo: %d ops exceeds transact-write limit of %d", len(ops), maxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, len(ops))
	for _, op := range ops {
		switch {
		case op.Put != nil:
			put := &types.Put{
				TableName: aws.String(s.table),
				Item:      itemFromRow(*op.Put),
			}
			applyCondition(op, put)
			items = append(items, types.TransactWriteItem{Put: put})
		case op.Delete != nil:
			del := &types.Delete{
				TableName: aws.String(s.table),
				Key: map[string]types.AttributeValue{
					attrEntityName:  &types.AttributeValueMemberS{Value: op.Delete.EntityName},
					attrSubjectName: &types.AttributeValueMemberS{Value: op.Delete.SubjectName},
				},
			}
			applyConditionDelete(op, del)
			items = append(items, types.TransactWriteItem{Delete: del})
		default:
			ck := op.ConditionKey
			items = append(items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
				TableName: aws.String(s.table),
				Key: map[string]types.AttributeValue{
					attrEntityName:  &types.AttributeValueMemberS{Value: ck.EntityName},
					attrSubjectName: &types.AttributeValueMemberS{Value: ck.SubjectName},
				},
				ConditionExpression: conditionExpression(op.Condition),
			}})
		}
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		reasons := make([]kv.ConditionReason, len(tce.CancellationReasons))
		for i, r := range tce.CancellationReasons {
			if r.Code != nil && *r.Code == "ConditionalCheckFailed" {
				reasons[i] = kv.ReasonConditionFailed
			}
		}
		return &kv.CancelledError{Reasons: reasons}
	}
	return translate(err)
}

func applyCondition(op kv.WriteOp, put *types.Put) {
	switch op.Condition {
	case kv.ConditionAbsent:
		put.ConditionExpression = aws.String(fmt.Sprintf("attribute_not_exists(%s)", attrSubjectName))
	case kv.ConditionExists:
		// Parent-existence condition on a different key is expressed as a
		// separate ConditionCheck item by the repository layer, not here;
		// a Put only ever self-conditions on ConditionAbsent.
	}
}

func applyConditionDelete(op kv.WriteOp, del *types.Delete) {
	if op.Condition == kv.ConditionExists {
		del.ConditionExpression = aws.String(fmt.Sprintf("attribute_exists(%s)", attrSubjectName))
	}
}

func conditionExpression(c kv.Condition) *string {
	switch c {
	case kv.ConditionExists:
		return aws.String(fmt.Sprintf("attribute_exists(%s)", attrSubjectName))
	case kv.ConditionAbsent:
		return aws.String(fmt.Sprintf("attribute_not_exists(%s)", attrSubjectName))
	default:
		return nil
	}
}

func rowFromItem(item map[string]types.AttributeValue) *kv.Row {
	row := &kv.Row{Attrs: map[string]string{}}
	if v, ok := item[attrEntityName].(*types.AttributeValueMemberS); ok {
		row.EntityName = v.Value
	}
	if v, ok := item[attrSubjectName].(*types.AttributeValueMemberS); ok {
		row.SubjectName = v.Value
	}
	if v, ok := item[attrCreatedAt].(*types.AttributeValueMemberS); ok {
		row.Attrs[attrCreatedAt] = v.Value
	}
	return row
}

func itemFromRow(row kv.Row) map[string]types.AttributeValue {
	createdAt := row.Attrs[attrCreatedAt]
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}
	return map[string]types.AttributeValue{
		attrEntityName:  &types.AttributeValueMemberS{Value: row.EntityName},
		attrSubjectName: &types.AttributeValueMemberS{Value: row.SubjectName},
		attrCreatedAt:   &types.AttributeValueMemberS{Value: createdAt},
	}
}

// translate maps throttling/timeout style AWS SDK errors onto the adapter's
// own error types; everything else is returned unchanged so higher layers
// wrap it as Internal.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var throttled *types.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return &kv.ThrottledError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &kv.TimeoutError{Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return err
}

// WithRetry wraps a dynamodb.Options function to configure the SDK's
// built-in bounded exponential backoff retrier at the transport level.
func WithRetry(opts *dynamodb.Options) {
	opts.RetryMaxAttempts = maxRetries
}
