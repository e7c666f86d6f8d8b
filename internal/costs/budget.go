package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
)

// BudgetStore encapsulates operations on the budgets table.
type BudgetStore struct {
	client    awsclient.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewBudgetStore(client awsclient.DynamoDBAPI, tableName string) *BudgetStore {
	return &BudgetStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Put creates or replaces a budget.
func (s *BudgetStore) Put(ctx context.Context, b Budget) error {
	now := s.nowFunc()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return fmt.Errorf("marshal budget: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put budget: %w", err)
	}
	return nil
}

// Get fetches one budget. Returns (nil, nil) if not found.
func (s *BudgetStore) Get(ctx context.Context, userID, budgetID string) (*Budget, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       budgetKey(userID, budgetID),
	})
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var b Budget
	if err := attributevalue.UnmarshalMap(out.Item, &b); err != nil {
		return nil, fmt.Errorf("unmarshal budget: %w", err)
	}
	return &b, nil
}

// List returns every budget owned by userID.
func (s *BudgetStore) List(ctx context.Context, userID string) ([]Budget, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	budgets := make([]Budget, 0, len(out.Items))
	for _, item := range out.Items {
		var b Budget
		if err := attributevalue.UnmarshalMap(item, &b); err != nil {
			return nil, fmt.Errorf("unmarshal budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, nil
}

// Delete removes a budget.
func (s *BudgetStore) Delete(ctx context.Context, userID, budgetID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key:       budgetKey(userID, budgetID),
	})
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// MarkAlerted records the month an alert was last sent for, so
// re-alerting can be suppressed when BUDGET_REALERT is off.
func (s *BudgetStore) MarkAlerted(ctx context.Context, userID, budgetID, period string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              budgetKey(userID, budgetID),
		UpdateExpression: awsString("SET last_alert_period = :lp, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lp": &types.AttributeValueMemberS{Value: period},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("mark alerted: %w", err)
	}
	return nil
}

// ShouldAlert reports whether spend has reached the alert threshold:
// (priorSpend+newCost)/amount x 100 >= alertThreshold. Fires exactly
// at the threshold, not one cent below.
func ShouldAlert(b Budget, priorSpend, newCost float64) bool {
	if b.Amount <= 0 {
		return false
	}
	pct := (priorSpend + newCost) / b.Amount * 100
	return pct >= b.AlertThreshold
}

// Covers reports whether the budget period includes the given date.
func (b Budget) Covers(date time.Time) bool {
	if b.Status != BudgetStatusActive {
		return false
	}
	return !date.Before(b.PeriodStart)
}

func budgetKey(userID, budgetID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id":   &types.AttributeValueMemberS{Value: userID},
		"budget_id": &types.AttributeValueMemberS{Value: budgetID},
	}
}
