package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"docvault/internal/awsclient"
	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/repository"
)

// API is the subset of the DynamoDB client used here.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// accessItem is the table layout. Times are unix milliseconds so conditions can compare them.
type accessItem struct {
	RecipientID   string `dynamodbav:"recipient_id"`
	DocumentID    string `dynamodbav:"document_id"`
	MaxDownloads  int    `dynamodbav:"max_downloads"`
	DownloadCount int    `dynamodbav:"download_count"`
	FirstAccess   int64  `dynamodbav:"first_access"`
	LastAccess    int64  `dynamodbav:"last_access"`
	ExpiryAt      int64  `dynamodbav:"expiry_at"`
	IsExpired     bool   `dynamodbav:"is_expired"`
}

func (it accessItem) record() *model.AccessLimitRecord {
	return &model.AccessLimitRecord{
		RecipientID:   it.RecipientID,
		DocumentID:    it.DocumentID,
		MaxDownloads:  it.MaxDownloads,
		DownloadCount: it.DownloadCount,
		FirstAccess:   time.UnixMilli(it.FirstAccess).UTC(),
		LastAccess:    time.UnixMilli(it.LastAccess).UTC(),
		ExpiryAt:      time.UnixMilli(it.ExpiryAt).UTC(),
		IsExpired:     it.IsExpired,
	}
}

// AccessLimitDynamo keeps the download ledger in a table keyed by
// (recipient_id HASH, document_id RANGE), using conditional writes.
type AccessLimitDynamo struct {
	client    API
	tableName string
}

// NewAccessLimitDynamo wraps an existing client.
func NewAccessLimitDynamo(client API, tableName string) *AccessLimitDynamo {
	return &AccessLimitDynamo{client: client, tableName: tableName}
}

// NewAccessLimitDynamoFromConfig builds the client from AWS settings.
func NewAccessLimitDynamoFromConfig(ctx context.Context, cfg config.AWSConfig) (*AccessLimitDynamo, error) {
	awsCfg, err := awsclient.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = awsclient.Endpoint(cfg)
	})
	return NewAccessLimitDynamo(client, cfg.AccessTable), nil
}

var _ repository.AccessLimitRepository = (*AccessLimitDynamo)(nil)

func (r *AccessLimitDynamo) key(recipientID, documentID string) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(map[string]string{
		"recipient_id": recipientID,
		"document_id":  documentID,
	})
}

func (r *AccessLimitDynamo) Authorize(ctx context.Context, recipientID, documentID string, now time.Time, p repository.Policy) (repository.Decision, error) {
	nowMs := now.UnixMilli()

	created, err := r.create(ctx, accessItem{
		RecipientID:   recipientID,
		DocumentID:    documentID,
		MaxDownloads:  p.MaxDownloads,
		DownloadCount: 1,
		FirstAccess:   nowMs,
		LastAccess:    nowMs,
		ExpiryAt:      now.Add(p.Window).UnixMilli(),
	})
	if err != nil {
		return repository.Decision{}, err
	}
	if created {
		return repository.Decision{Allowed: true, Reason: repository.ReasonFirstAccess, Count: 1}, nil
	}

	count, ok, err := r.increment(ctx, recipientID, documentID, nowMs)
	if err != nil {
		return repository.Decision{}, err
	}
	if ok {
		return repository.Decision{Allowed: true, Reason: repository.ReasonWithinLimit, Count: count}, nil
	}

	expired, err := r.expire(ctx, recipientID, documentID, nowMs)
	if err != nil {
		return repository.Decision{}, err
	}
	if expired {
		return repository.Decision{Reason: repository.ReasonExpired}, nil
	}
	return repository.Decision{Reason: repository.ReasonDenied}, nil
}

func (r *AccessLimitDynamo) create(ctx context.Context, it accessItem) (bool, error) {
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return false, fmt.Errorf("failed to marshal access item: %w", err)
	}
	cond := expression.AttributeNotExists(expression.Name("recipient_id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return false, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to put access item: %w", err)
	}
	return true, nil
}

func (r *AccessLimitDynamo) increment(ctx context.Context, recipientID, documentID string, nowMs int64) (int, bool, error) {
	key, err := r.key(recipientID, documentID)
	if err != nil {
		return 0, false, err
	}
	update := expression.Add(expression.Name("download_count"), expression.Value(1)).
		Set(expression.Name("last_access"), expression.Value(nowMs))
	cond := expression.Name("is_expired").Equal(expression.Value(false)).
		And(
			expression.Name("expiry_at").GreaterThanEqual(expression.Value(nowMs)),
			expression.Name("download_count").LessThan(expression.Name("max_downloads")),
		)
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build update: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment access item: %w", err)
	}

	var updated struct {
		DownloadCount int `dynamodbav:"download_count"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &updated); err != nil {
		return 0, false, fmt.Errorf("failed to unmarshal updated count: %w", err)
	}
	return updated.DownloadCount, true, nil
}

func (r *AccessLimitDynamo) expire(ctx context.Context, recipientID, documentID string, nowMs int64) (bool, error) {
	key, err := r.key(recipientID, documentID)
	if err != nil {
		return false, err
	}
	update := expression.Set(expression.Name("is_expired"), expression.Value(true))
	cond := expression.Name("expiry_at").LessThan(expression.Value(nowMs)).
		And(expression.Name("is_expired").Equal(expression.Value(false)))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return false, fmt.Errorf("failed to build expiry update: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to expire access item: %w", err)
	}
	return true, nil
}

func (r *AccessLimitDynamo) Find(ctx context.Context, recipientID, documentID string) (*model.AccessLimitRecord, error) {
	key, err := r.key(recipientID, documentID)
	if err != nil {
		return nil, err
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get access item: %w", err)
	}
	if out.Item == nil {
		return nil, repository.ErrNotFound
	}
	var it accessItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal access item: %w", err)
	}
	return it.record(), nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
