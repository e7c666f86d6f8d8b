package simulation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
)

// statusIndex is the GSI used to find active simulations by status.
const statusIndex = "status-index"

// Store encapsulates operations on the simulations table.
type Store struct {
	client    awsclient.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new simulations Store.
func NewStore(client awsclient.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists the initial record. Version starts at 1; the put is
// guarded so a replayed submit cannot overwrite an existing simulation.
func (s *Store) Create(ctx context.Context, sim Simulation) error {
	now := s.nowFunc()
	sim.Version = 1
	if sim.CreatedAt.IsZero() {
		sim.CreatedAt = now
	}
	sim.UpdatedAt = now

	item, err := attributevalue.MarshalMap(sim)
	if err != nil {
		return fmt.Errorf("marshal simulation: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(simulation_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return fmt.Errorf("simulation %s already exists: %w", sim.SimulationID, apperr.ErrVersionConflict)
		}
		return fmt.Errorf("put simulation: %w", err)
	}
	return nil
}

// Get fetches a simulation. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, userID, simulationID string) (*Simulation, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       simKey(userID, simulationID),
	})
	if err != nil {
		return nil, fmt.Errorf("get simulation: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var sim Simulation
	if err := attributevalue.UnmarshalMap(out.Item, &sim); err != nil {
		return nil, fmt.Errorf("unmarshal simulation: %w", err)
	}
	return &sim, nil
}

// ListByUser returns every simulation owned by userID.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Simulation, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query simulations: %w", err)
	}
	return unmarshalSims(out.Items)
}

// ListByStatus returns every simulation currently in the given status,
// via the status GSI. Used by the monitor and the cost tracker.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]Simulation, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:                &s.tableName,
		IndexName:                awsString(statusIndex),
		KeyConditionExpression:   awsString("#s = :s"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	return unmarshalSims(out.Items)
}

// StatusUpdate describes one conditional transition of the record.
type StatusUpdate struct {
	Status    Status
	Details   string
	Progress  *int
	Summary   *ResultSummary
	StartedAt *time.Time
}

// ApplyStatus performs a version-checked partial update. On terminal
// statuses completed_at is stamped once (if_not_exists); on COMPLETED
// progress is forced to 100. Returns apperr.ErrVersionConflict when a
// concurrent writer got there first.
func (s *Store) ApplyStatus(ctx context.Context, userID, simulationID string, expectedVersion int64, upd StatusUpdate) error {
	now := s.nowFunc()

	expr := "SET #s = :s, updated_at = :ua, version = :nv"
	names := map[string]string{"#s": "status"}
	vals := map[string]types.AttributeValue{
		":s":  &types.AttributeValueMemberS{Value: string(upd.Status)},
		":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		":nv": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion+1, 10)},
		":ev": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
	}

	if upd.Details != "" {
		expr += ", status_details = :sd"
		vals[":sd"] = &types.AttributeValueMemberS{Value: upd.Details}
	}

	progress := upd.Progress
	if upd.Status == StatusCompleted {
		hundred := 100
		progress = &hundred
	}
	if progress != nil {
		expr += ", progress = :p"
		vals[":p"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*progress)}
	}

	if upd.Summary != nil {
		av, err := attributevalue.Marshal(upd.Summary)
		if err != nil {
			return fmt.Errorf("marshal result summary: %w", err)
		}
		expr += ", result_summary = :rs"
		vals[":rs"] = av
	}

	if upd.StartedAt != nil {
		expr += ", started_at = if_not_exists(started_at, :st)"
		vals[":st"] = &types.AttributeValueMemberS{Value: upd.StartedAt.Format(time.RFC3339)}
	}

	if upd.Status.Terminal() {
		expr += ", completed_at = if_not_exists(completed_at, :ca)"
		vals[":ca"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       simKey(userID, simulationID),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: vals,
		ConditionExpression:       awsString("version = :ev"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return apperr.ErrVersionConflict
		}
		return fmt.Errorf("update simulation: %w", err)
	}
	return nil
}

// BindBatchJob records the scheduler job id and moves the simulation
// to RUNNING. The job id is assigned exactly once: the condition fails
// if one is already present.
func (s *Store) BindBatchJob(ctx context.Context, userID, simulationID string, expectedVersion int64, jobID string, expectedRuntime time.Duration) error {
	now := s.nowFunc()
	expr := "SET batch_job_id = :j, #s = :s, updated_at = :ua, version = :nv, expected_runtime_ms = :er"

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      simKey(userID, simulationID),
		UpdateExpression:         &expr,
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":j":  &types.AttributeValueMemberS{Value: jobID},
			":s":  &types.AttributeValueMemberS{Value: string(StatusRunning)},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":nv": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion+1, 10)},
			":er": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedRuntime.Milliseconds(), 10)},
			":ev": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		},
		ConditionExpression: awsString("version = :ev AND attribute_not_exists(batch_job_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return apperr.ErrVersionConflict
		}
		return fmt.Errorf("bind batch job: %w", err)
	}
	return nil
}

func simKey(userID, simulationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id":       &types.AttributeValueMemberS{Value: userID},
		"simulation_id": &types.AttributeValueMemberS{Value: simulationID},
	}
}

func unmarshalSims(items []map[string]types.AttributeValue) ([]Simulation, error) {
	sims := make([]Simulation, 0, len(items))
	for _, item := range items {
		var sim Simulation
		if err := attributevalue.UnmarshalMap(item, &sim); err != nil {
			return nil, fmt.Errorf("unmarshal simulation: %w", err)
		}
		sims = append(sims, sim)
	}
	return sims, nil
}

func awsString(s string) *string { return &s }
