package dynamo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/api-yamdb/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
//
// Username and email uniqueness is enforced with guard items stored in the same
// table (user_id = "USERNAME#<lower>" / "EMAIL#<lower>") written in the same
// transaction as the user. The GSIs only serve lookups; they are eventually
// consistent and cannot reject a concurrent duplicate on their own.
type UserRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewUserRepo(client *dynamodb.Client, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func usernameGuard(username string) string { return "USERNAME#" + strings.ToLower(username) }
func emailGuard(email string) string       { return "EMAIL#" + strings.ToLower(email) }

// normalize fills the lower-cased index attributes.
func normalize(u *domain.User) {
	u.UsernameLower = strings.ToLower(u.Username)
	u.EmailLower = strings.ToLower(u.Email)
}

// Put creates u. It fails with domain.ErrConflict when the id, username or email is taken.
func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	normalize(u)
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: r.conditionalPut(item)},
			{Put: r.guardPut(usernameGuard(u.Username), u.UserID)},
			{Put: r.guardPut(emailGuard(u.Email), u.UserID)},
		},
	})
	return translateTxErr(err)
}

// Replace overwrites prev with next, moving the uniqueness guards when the
// username or email changed.
func (r *UserRepo) Replace(ctx context.Context, prev, next *domain.User) error {
	normalize(next)
	next.UpdatedAt = time.Now().UTC()
	item, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	items := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(user_id)"),
	}}}
	if !strings.EqualFold(prev.Username, next.Username) {
		items = append(items,
			types.TransactWriteItem{Delete: r.guardDelete(usernameGuard(prev.Username))},
			types.TransactWriteItem{Put: r.guardPut(usernameGuard(next.Username), next.UserID)},
		)
	}
	if !strings.EqualFold(prev.Email, next.Email) {
		items = append(items,
			types.TransactWriteItem{Delete: r.guardDelete(emailGuard(prev.Email))},
			types.TransactWriteItem{Put: r.guardPut(emailGuard(next.Email), next.UserID)},
		)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return translateTxErr(err)
}

// Delete hard-deletes u together with its uniqueness guards.
func (r *UserRepo) Delete(ctx context.Context, u *domain.User) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: r.guardDelete(u.UserID)},
			{Delete: r.guardDelete(usernameGuard(u.Username))},
			{Delete: r.guardDelete(emailGuard(u.Email))},
		},
	})
	return translateTxErr(err)
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.queryGSI(ctx, indexUsernameLower, attrUsernameLower, strings.ToLower(username))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.queryGSI(ctx, indexEmailLower, attrEmailLower, strings.ToLower(email))
}

// Update sets plain attributes on a user. It must not be used for username or email.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[attrUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(attrUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return err
}

// ScanPage returns a page of users, skipping guard items.
// cursor is a base64-encoded user_id used as ExclusiveStartKey.
// Returns the items, a next cursor (empty string when no more pages), and any error.
func (r *UserRepo) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	input := &dynamodb.ScanInput{
		TableName:                aws.String(r.tableName),
		FilterExpression:         aws.String("attribute_exists(#u)"),
		ExpressionAttributeNames: map[string]string{"#u": attrUsernameLower},
		Limit:                    aws.Int32(limit),
	}
	if cursor != "" {
		userID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = strKey(attrUserID, userID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	var users []domain.User
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if v, ok := out.LastEvaluatedKey[attrUserID].(*types.AttributeValueMemberS); ok {
		nextCursor = encodeCursor(v.Value)
	}
	return users, nextCursor, nil
}

func encodeCursor(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: value}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) conditionalPut(item map[string]types.AttributeValue) *types.Put {
	return &types.Put{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	}
}

func (r *UserRepo) guardPut(guardID, ownerID string) *types.Put {
	return r.conditionalPut(map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberS{Value: guardID},
		"owner_id": &types.AttributeValueMemberS{Value: ownerID},
	})
}

func (r *UserRepo) guardDelete(id string) *types.Delete {
	return &types.Delete{
		TableName: aws.String(r.tableName),
		Key:       strKey(attrUserID, id),
	}
}

// translateTxErr maps a failed condition inside a transaction to domain.ErrConflict.
func translateTxErr(err error) error {
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return fmt.Errorf("user already exists: %w", domain.ErrConflict)
			}
		}
	}
	return err
}
