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

// timePeriodIndex is the GSI on (user_id, time_period) used for
// monthly aggregation queries.
const timePeriodIndex = "time-period-index"

// Store encapsulates operations on the cost-records table.
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

// Put writes a cost record. Writes are idempotent per (user, resource,
// date): re-running a tracker tick overwrites the row with the newer
// figure for the same day.
func (s *Store) Put(ctx context.Context, rec CostRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.nowFunc()
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal cost record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put cost record: %w", err)
	}
	return nil
}

// ListByPeriod returns every record for a user in a month bucket.
func (s *Store) ListByPeriod(ctx context.Context, userID, timePeriod string) ([]CostRecord, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(timePeriodIndex),
		KeyConditionExpression: awsString("user_id = :uid AND time_period = :tp"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":tp":  &types.AttributeValueMemberS{Value: timePeriod},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query cost records: %w", err)
	}
	recs := make([]CostRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var rec CostRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal cost record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// MonthToDate sums a user's recorded cost for a month bucket.
func (s *Store) MonthToDate(ctx context.Context, userID, timePeriod string) (float64, error) {
	recs, err := s.ListByPeriod(ctx, userID, timePeriod)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range recs {
		total += r.Cost
	}
	return total, nil
}

func awsString(s string) *string { return &s }
