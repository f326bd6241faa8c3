package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"contact-intake/internal/domain"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client stores contact messages in a DynamoDB table keyed by "id".
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// Save inserts msg and stamps msg.CreatedAt. An existing item with the same
// id fails the write.
func (c *Client) Save(ctx context.Context, msg *domain.ContactMessage) (bool, error) {
	if msg == nil || msg.ID == "" {
		return false, errors.New("repository: Save: message id is required")
	}
	if !msg.Category.Valid() {
		return false, fmt.Errorf("repository: Save: invalid category %q", msg.Category)
	}
	data, err := encodeData(msg.Data)
	if err != nil {
		return false, fmt.Errorf("repository: Save: %w", err)
	}
	createdAt := c.now().UTC()

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                messageItem(msg, data, createdAt),
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, fmt.Errorf("repository: Save %s: %w", msg.ID, ErrDuplicateID)
		}
		return false, fmt.Errorf("repository: Save: %w", err)
	}
	msg.CreatedAt = createdAt
	return true, nil
}

func messageItem(msg *domain.ContactMessage, data string, createdAt time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: msg.ID},
		"category":   &types.AttributeValueMemberS{Value: msg.Category.String()},
		"email":      &types.AttributeValueMemberS{Value: msg.Email},
		"name":       &types.AttributeValueMemberS{Value: msg.Name},
		"message":    &types.AttributeValueMemberS{Value: msg.Message},
		"data":       &types.AttributeValueMemberS{Value: data},
		"created_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", createdAt.Unix())},
	}
}
