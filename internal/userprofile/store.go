// Package userprofile keeps a denormalized cache of identity-provider
// users in the application's own store, so authorization checks do not
// round-trip to the provider.
package userprofile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
)

// Profile statuses
const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
)

// DefaultQuotaHours is granted to every newly confirmed user.
const DefaultQuotaHours = 100.0

// Profile is the item stored in the user-profiles table.
type Profile struct {
	UserID     string    `dynamodbav:"user_id"` // PK
	Email      string    `dynamodbav:"email,omitempty"`
	QuotaHours float64   `dynamodbav:"quota_hours"`
	UsedHours  float64   `dynamodbav:"used_hours"`
	Status     string    `dynamodbav:"status"`
	CreatedAt  time.Time `dynamodbav:"created_at"`
	UpdatedAt  time.Time `dynamodbav:"updated_at"`
}

// Store encapsulates operations on the user-profiles table.
type Store struct {
	client    awsclient.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client awsclient.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// CreateDefault writes the default profile for a newly confirmed user.
// A profile that already exists is left untouched and reported as
// created=false.
func (s *Store) CreateDefault(ctx context.Context, userID, email string) (bool, error) {
	now := s.nowFunc()
	p := Profile{
		UserID:     userID,
		Email:      email,
		QuotaHours: DefaultQuotaHours,
		UsedHours:  0,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return false, fmt.Errorf("marshal profile: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(user_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return false, nil
		}
		return false, fmt.Errorf("put profile: %w", err)
	}
	return true, nil
}

// Get fetches a profile. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, userID string) (*Profile, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &p, nil
}

// AddUsage accumulates simulation-hours against the quota.
func (s *Store) AddUsage(ctx context.Context, userID string, hours float64) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression: awsString("SET used_hours = if_not_exists(used_hours, :zero) + :h, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":h":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", hours)},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
