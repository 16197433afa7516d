package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// codeItem is one pending confirmation code.
// ExpiresAtMs is the logical expiry; TTL (Unix seconds) is the DynamoDB TTL
// attribute and lies retention past it, so the item outlives its window briefly.
type codeItem struct {
	Key         string `dynamodbav:"code_key"`
	Code        string `dynamodbav:"code"`
	ExpiresAtMs int64  `dynamodbav:"expires_at_ms"`
	TTL         int64  `dynamodbav:"ttl"`
}

func newCodeItem(key, code string, now time.Time, ttl, retention time.Duration) codeItem {
	exp := now.Add(ttl)
	return codeItem{
		Key:         key,
		Code:        code,
		ExpiresAtMs: exp.UnixMilli(),
		TTL:         exp.Add(retention).Unix(),
	}
}

func (c codeItem) remaining(now time.Time) time.Duration {
	return time.UnixMilli(c.ExpiresAtMs).Sub(now)
}

// evicted reports whether DynamoDB may already have removed the item. TTL
// deletion runs in the background, so such items are ignored explicitly.
func (c codeItem) evicted(now time.Time) bool {
	return now.Unix() > c.TTL
}

// CodeStore keeps confirmation codes in a DynamoDB table keyed by code_key.
type CodeStore struct {
	client    *dynamodb.Client
	tableName string
	retention time.Duration
	now       func() time.Time
}

func NewCodeStore(client *dynamodb.Client, tableName string, retention time.Duration) *CodeStore {
	return &CodeStore{client: client, tableName: tableName, retention: retention, now: time.Now}
}

func (s *CodeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(newCodeItem(key, value, s.now(), ttl, s.retention))
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *CodeStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	item, ok, err := s.load(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	return item.remaining(s.now()), true, nil
}

func (s *CodeStore) Get(ctx context.Context, key string) (string, bool, error) {
	item, ok, err := s.load(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	if item.remaining(s.now()) <= 0 {
		return "", false, nil
	}
	return item.Code, true, nil
}

// Delete uses ReturnValues=ALL_OLD so only the caller that actually removed the
// item sees existed=true.
func (s *CodeStore) Delete(ctx context.Context, key string) (bool, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.tableName),
		Key:          strKey(attrCodeKey, key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}
	return len(out.Attributes) > 0, nil
}

// Consume deletes the item only if it still holds expected and is inside its
// window. A failed condition means another redemption or a newer code won.
func (s *CodeStore) Consume(ctx context.Context, key, expected string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, s.consumeInput(key, expected, s.now()))
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *CodeStore) consumeInput(key, expected string, now time.Time) *dynamodb.DeleteItemInput {
	return &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 strKey(attrCodeKey, key),
		ConditionExpression: aws.String("#code = :code AND #exp > :now"),
		ExpressionAttributeNames: map[string]string{
			"#code": "code",
			"#exp":  "expires_at_ms",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code": &types.AttributeValueMemberS{Value: expected},
			":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	}
}

func (s *CodeStore) load(ctx context.Context, key string) (codeItem, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(attrCodeKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return codeItem{}, false, err
	}
	if out.Item == nil {
		return codeItem{}, false, nil
	}
	var item codeItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return codeItem{}, false, fmt.Errorf("unmarshal code: %w", err)
	}
	if item.evicted(s.now()) {
		return codeItem{}, false, nil
	}
	return item, true, nil
}
