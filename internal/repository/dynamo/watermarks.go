// Package dynamo provides a DynamoDB-backed watermark store for deployments
// that run the job runner without a shared Postgres.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type watermarkItem struct {
	JobName     string `dynamodbav:"job_name"`
	Period      string `dynamodbav:"period"`
	CompletedAt string `dynamodbav:"completed_at"`
}

// WatermarkStore implements jobs.WatermarkStore on a table keyed by
// job_name.
type WatermarkStore struct {
	client DynamoAPI
	table  string
}

// NewWatermarkStore returns a store over table.
func NewWatermarkStore(client DynamoAPI, table string) *WatermarkStore {
	return &WatermarkStore{client: client, table: table}
}

func (s *WatermarkStore) Last(ctx context.Context, jobName string) (*domain.JobWatermark, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{"job_name": &types.AttributeValueMemberS{Value: jobName}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get watermark %s: %w", jobName, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item watermarkItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode watermark %s: %w", jobName, err)
	}
	completed, err := time.Parse(time.RFC3339Nano, item.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("decode watermark %s: %w", jobName, err)
	}
	return &domain.JobWatermark{JobName: item.JobName, Period: item.Period, CompletedAt: completed}, nil
}

// Commit writes the watermark unless a newer period is already stored.
func (s *WatermarkStore) Commit(ctx context.Context, m domain.JobWatermark) error {
	item, err := attributevalue.MarshalMap(watermarkItem{
		JobName:     m.JobName,
		Period:      m.Period,
		CompletedAt: m.CompletedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode watermark %s: %w", m.JobName, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(job_name) OR #p <= :p"),
		ExpressionAttributeNames: map[string]string{"#p": "period"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: m.Period},
		},
	})
	var stale *types.ConditionalCheckFailedException
	if errors.As(err, &stale) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit watermark %s: %w", m.JobName, err)
	}
	return nil
}
