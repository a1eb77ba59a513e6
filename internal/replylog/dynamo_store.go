package replylog

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type dynamoRecord struct {
	Slot      string `dynamodbav:"slot"`
	Kind      string `dynamodbav:"kind"`
	Answer    string `dynamodbav:"answer"`
	Prompt    string `dynamodbav:"prompt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt,omitempty"`
}

// DynamoStore keeps one item per slot, keyed by the "slot" attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
}

func NewDynamoStore(client dynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	if client == nil {
		panic("replylog: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("replylog: table name cannot be empty")
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &DynamoStore{client: client, tableName: tableName, ttl: ttl}
}

func (s *DynamoStore) Write(ctx context.Context, key string, entry Entry) error {
	now := time.Now().UTC()
	item, err := attributevalue.MarshalMap(dynamoRecord{
		Slot:      key,
		Kind:      entry.Kind,
		Answer:    entry.Answer,
		Prompt:    entry.Prompt,
		UpdatedAt: now.Format(time.RFC3339Nano),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("replylog: marshal reply: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("replylog: persist reply: %w", err)
	}
	return nil
}

func (s *DynamoStore) Read(ctx context.Context, key string) (Entry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            slotKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("replylog: load reply: %w", err)
	}
	if len(out.Item) == 0 {
		return Entry{}, ErrEmpty
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return Entry{}, fmt.Errorf("replylog: decode reply: %w", err)
	}
	if rec.Kind == "" || rec.Answer == "" {
		return Entry{}, ErrEmpty
	}
	return Entry{Kind: rec.Kind, Answer: rec.Answer, Prompt: rec.Prompt}, nil
}

func (s *DynamoStore) Clear(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       slotKey(key),
	})
	if err != nil {
		return fmt.Errorf("replylog: clear reply: %w", err)
	}
	return nil
}

func slotKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"slot": &types.AttributeValueMemberS{Value: key},
	}
}
