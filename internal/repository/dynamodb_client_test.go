package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"contact-intake/internal/domain"
)

type fakeDynamo struct {
	putErr       error
	lastPutInput *dynamodb.PutItemInput
	items        map[string]map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.items == nil {
		f.items = map[string]map[string]types.AttributeValue{}
	}
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	if _, exists := f.items[id]; exists {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "contact-messages")
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func sampleMessage(id string, data map[string]string) *domain.ContactMessage {
	return &domain.ContactMessage{
		ID:       id,
		Category: domain.CategoryTestimonial,
		Email:    "test@example.com",
		Name:     "John Doe",
		Message:  "Test message",
		Data:     data,
	}
}

func strValue(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %q is not a string", key)
	return v.Value
}

func TestSave_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	msg := sampleMessage("msg-1", map[string]string{"rating": "5"})

	ok, err := c.Save(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fixedNow, msg.CreatedAt)

	in := db.lastPutInput
	require.Equal(t, "contact-messages", *in.TableName)
	require.Equal(t, "attribute_not_exists(id)", *in.ConditionExpression)
	require.Equal(t, "msg-1", strValue(t, in.Item, "id"))
	require.Equal(t, "TESTIMONIAL", strValue(t, in.Item, "category"))
	require.Equal(t, "test@example.com", strValue(t, in.Item, "email"))
	require.Equal(t, "John Doe", strValue(t, in.Item, "name"))
	require.Equal(t, "Test message", strValue(t, in.Item, "message"))
	require.Equal(t, `{"rating":"5"}`, strValue(t, in.Item, "data"))
	require.Equal(t, fmt.Sprintf("%d", fixedNow.Unix()), in.Item["created_at"].(*types.AttributeValueMemberN).Value)
}

func TestSave_NoDataStoresNullLiteral(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.Save(context.Background(), sampleMessage("msg-1", nil))
	require.NoError(t, err)
	require.Equal(t, "null", strValue(t, db.lastPutInput.Item, "data"))
}

func TestSave_DuplicateID(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.Save(context.Background(), sampleMessage("msg-1", nil))
	require.NoError(t, err)

	second := sampleMessage("msg-1", nil)
	ok, err := c.Save(context.Background(), second)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrDuplicateID)
	require.True(t, second.CreatedAt.IsZero())
	require.Len(t, db.items, 1)
}

func TestSave_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	msg := sampleMessage("msg-1", nil)

	ok, err := c.Save(context.Background(), msg)
	require.False(t, ok)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Save")
	require.NotErrorIs(t, err, ErrDuplicateID)
	require.True(t, msg.CreatedAt.IsZero())
}

func TestSave_MissingID(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	_, err := c.Save(context.Background(), sampleMessage("", nil))
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
	require.Nil(t, db.lastPutInput)

	_, err = c.Save(context.Background(), nil)
	require.Error(t, err)
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "contact-messages")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
