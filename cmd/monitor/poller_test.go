package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	batchtypes "github.com/aws/aws-sdk-go-v2/service/batch/types"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/batchjob"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
	"github.com/geoschem-cloud/simulation-workflow/internal/workflow"
)

// --- mock implementations ---

type mockDynamo struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{table: map[string]map[string]types.AttributeValue{}}
}

func dynKey(attrs map[string]types.AttributeValue) string {
	uid := attrs["user_id"].(*types.AttributeValueMemberS).Value
	sid := attrs["simulation_id"].(*types.AttributeValueMemberS).Value
	return uid + "#" + sid
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dynKey(in.Item)
	if in.ConditionExpression != nil && *in.ConditionExpression == "attribute_not_exists(simulation_id)" {
		if _, ok := m.table[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.table[dynKey(in.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.table[dynKey(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	vals := in.ExpressionAttributeValues
	if in.ConditionExpression != nil && strings.Contains(*in.ConditionExpression, "version = :ev") {
		have, _ := item["version"].(*types.AttributeValueMemberN)
		want, _ := vals[":ev"].(*types.AttributeValueMemberN)
		if have == nil || want == nil || have.Value != want.Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	set := func(attr, placeholder string) {
		if v, ok := vals[placeholder]; ok {
			item[attr] = v
		}
	}
	set("status", ":s")
	set("updated_at", ":ua")
	set("version", ":nv")
	set("status_details", ":sd")
	set("progress", ":p")
	set("result_summary", ":rs")
	set("batch_job_id", ":j")
	set("expected_runtime_ms", ":er")
	if v, ok := vals[":st"]; ok {
		if _, exists := item["started_at"]; !exists {
			item["started_at"] = v
		}
	}
	if v, ok := vals[":ca"]; ok {
		if _, exists := item["completed_at"]; !exists {
			item["completed_at"] = v
		}
	}
	m.table[dynKey(in.Key)] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.table, dynKey(in.Key))
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &dyn.QueryOutput{}
	if in.IndexName != nil {
		want := in.ExpressionAttributeValues[":s"].(*types.AttributeValueMemberS).Value
		for _, item := range m.table {
			if st, ok := item["status"].(*types.AttributeValueMemberS); ok && st.Value == want {
				out.Items = append(out.Items, item)
			}
		}
		return out, nil
	}
	want := in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS).Value
	for _, item := range m.table {
		if uid, ok := item["user_id"].(*types.AttributeValueMemberS); ok && uid.Value == want {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

type mockBatch struct {
	jobs map[string]batchtypes.JobDetail
}

func (m *mockBatch) SubmitJob(ctx context.Context, in *batch.SubmitJobInput, optFns ...func(*batch.Options)) (*batch.SubmitJobOutput, error) {
	return &batch.SubmitJobOutput{JobId: sdkaws.String("job-1")}, nil
}

func (m *mockBatch) DescribeJobs(ctx context.Context, in *batch.DescribeJobsInput, optFns ...func(*batch.Options)) (*batch.DescribeJobsOutput, error) {
	out := &batch.DescribeJobsOutput{}
	for _, id := range in.Jobs {
		if j, ok := m.jobs[id]; ok {
			out.Jobs = append(out.Jobs, j)
		}
	}
	return out, nil
}

type mockSQS struct {
	sent     []string
	failNext error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}
	m.sent = append(m.sent, sdkaws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

// --- tests ---

func seedRunning(t *testing.T, sims *simulation.Store, simID, jobID string) {
	t.Helper()
	ctx := context.Background()
	if err := sims.Create(ctx, simulation.Simulation{
		UserID:         "user-1",
		SimulationID:   simID,
		Status:         simulation.StatusSubmitted,
		OutputLocation: "s3://outputs/user-1/" + simID,
	}); err != nil {
		t.Fatalf("seed %s: %v", simID, err)
	}
	if err := sims.BindBatchJob(ctx, "user-1", simID, 1, jobID, 10*time.Hour); err != nil {
		t.Fatalf("bind %s: %v", simID, err)
	}
	sim, err := sims.Get(ctx, "user-1", simID)
	if err != nil {
		t.Fatalf("read back %s: %v", simID, err)
	}
	if sim.BatchJobID != jobID {
		t.Fatalf("seed %s: batch_job_id = %q, want %q", simID, sim.BatchJobID, jobID)
	}
}

func newTestPoller(dynamo *mockDynamo, batchAPI *mockBatch, queue *mockSQS) (*Poller, *simulation.Store) {
	sims := simulation.NewStore(dynamo, "simulations")
	p := NewPoller(
		sims,
		batchjob.NewClient(batchAPI, "geos-chem-queue", "grav-def", "x86-def"),
		awsclient.NewPublisher(queue, "https://sqs/results"),
	)
	return p, sims
}

func TestTick_RunningProgress(t *testing.T) {
	dynamo := newMockDynamo()
	started := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	batchAPI := &mockBatch{jobs: map[string]batchtypes.JobDetail{
		"job-1": {
			JobId:     sdkaws.String("job-1"),
			Status:    batchtypes.JobStatusRunning,
			StartedAt: sdkaws.Int64(started.UnixMilli()),
		},
	}}
	queue := &mockSQS{}
	p, sims := newTestPoller(dynamo, batchAPI, queue)
	p.nowFunc = func() time.Time { return started.Add(5 * time.Hour) }

	seedRunning(t, sims, "sim-1", "job-1")

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	sim, _ := sims.Get(context.Background(), "user-1", "sim-1")
	if sim.Status != simulation.StatusRunning {
		t.Errorf("status = %s, want RUNNING", sim.Status)
	}
	// 5h elapsed of a 10h expected runtime
	if sim.Progress != 50 {
		t.Errorf("progress = %d, want 50", sim.Progress)
	}
	if sim.StartedAt == nil || !sim.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", sim.StartedAt, started)
	}
	if len(queue.sent) != 0 {
		t.Errorf("unexpected results message: %v", queue.sent)
	}
}

func TestTick_SucceededPublishesProcessResults(t *testing.T) {
	dynamo := newMockDynamo()
	batchAPI := &mockBatch{jobs: map[string]batchtypes.JobDetail{
		"job-1": {
			JobId:  sdkaws.String("job-1"),
			Status: batchtypes.JobStatusSucceeded,
		},
	}}
	queue := &mockSQS{}
	p, sims := newTestPoller(dynamo, batchAPI, queue)

	seedRunning(t, sims, "sim-1", "job-1")

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	sim, _ := sims.Get(context.Background(), "user-1", "sim-1")
	if sim.Status != simulation.StatusProcessingResults {
		t.Errorf("status = %s, want PROCESSING_RESULTS", sim.Status)
	}

	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 results message, got %d", len(queue.sent))
	}
	decoded, err := workflow.Decode([]byte(queue.sent[0]))
	if err != nil {
		t.Fatalf("decode results message: %v", err)
	}
	msg, ok := decoded.(workflow.ProcessResults)
	if !ok {
		t.Fatalf("expected ProcessResults, got %T", decoded)
	}
	if msg.SimulationID != "sim-1" || msg.OutputLocation != "s3://outputs/user-1/sim-1" {
		t.Errorf("message mismatch: %+v", msg)
	}
}

func TestTick_ResendResultsAfterPublishFailure(t *testing.T) {
	dynamo := newMockDynamo()
	batchAPI := &mockBatch{jobs: map[string]batchtypes.JobDetail{
		"job-1": {
			JobId:  sdkaws.String("job-1"),
			Status: batchtypes.JobStatusSucceeded,
		},
	}}
	queue := &mockSQS{failNext: errors.New("sqs unavailable")}
	p, sims := newTestPoller(dynamo, batchAPI, queue)
	ctx := context.Background()

	seedRunning(t, sims, "sim-1", "job-1")

	if err := p.Tick(ctx); err == nil {
		t.Fatal("expected first Tick to surface the publish failure")
	}
	sim, _ := sims.Get(ctx, "user-1", "sim-1")
	if sim.Status != simulation.StatusProcessingResults {
		t.Fatalf("status = %s, want PROCESSING_RESULTS", sim.Status)
	}

	// queue recovered: the next poll must retry the send
	if err := p.Tick(ctx); err != nil {
		t.Fatalf("second Tick error: %v", err)
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 results message after retry, got %d", len(queue.sent))
	}
	decoded, err := workflow.Decode([]byte(queue.sent[0]))
	if err != nil {
		t.Fatalf("decode results message: %v", err)
	}
	if msg, ok := decoded.(workflow.ProcessResults); !ok || msg.SimulationID != "sim-1" {
		t.Errorf("unexpected retry message: %#v", decoded)
	}

	// the retry does not rewrite an already current record
	after, _ := sims.Get(ctx, "user-1", "sim-1")
	if after.Version != sim.Version {
		t.Errorf("retry bumped version %d -> %d", sim.Version, after.Version)
	}
}

func TestTick_FailedRecordsReason(t *testing.T) {
	dynamo := newMockDynamo()
	batchAPI := &mockBatch{jobs: map[string]batchtypes.JobDetail{
		"job-1": {
			JobId:  sdkaws.String("job-1"),
			Status: batchtypes.JobStatusFailed,
			Container: &batchtypes.ContainerDetail{
				Reason:   sdkaws.String("OutOfMemoryError: Container killed"),
				ExitCode: sdkaws.Int32(137),
			},
		},
	}}
	queue := &mockSQS{}
	p, sims := newTestPoller(dynamo, batchAPI, queue)

	seedRunning(t, sims, "sim-1", "job-1")

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	sim, _ := sims.Get(context.Background(), "user-1", "sim-1")
	if sim.Status != simulation.StatusFailed {
		t.Errorf("status = %s, want FAILED", sim.Status)
	}
	if !strings.Contains(sim.StatusDetails, "OutOfMemoryError") || !strings.Contains(sim.StatusDetails, "137") {
		t.Errorf("failure reason not captured: %q", sim.StatusDetails)
	}
	if sim.CompletedAt == nil {
		t.Error("completed_at not stamped on failure")
	}
}

func TestTick_UnchangedRunningWritesNothing(t *testing.T) {
	dynamo := newMockDynamo()
	started := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	batchAPI := &mockBatch{jobs: map[string]batchtypes.JobDetail{
		"job-1": {
			JobId:     sdkaws.String("job-1"),
			Status:    batchtypes.JobStatusRunning,
			StartedAt: sdkaws.Int64(started.UnixMilli()),
		},
	}}
	queue := &mockSQS{}
	p, sims := newTestPoller(dynamo, batchAPI, queue)
	p.nowFunc = func() time.Time { return started.Add(5 * time.Hour) }

	seedRunning(t, sims, "sim-1", "job-1")

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("first Tick error: %v", err)
	}
	sim, _ := sims.Get(context.Background(), "user-1", "sim-1")
	versionAfterFirst := sim.Version

	// same wall clock, same scheduler state: second poll is a no-op
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick error: %v", err)
	}
	sim, _ = sims.Get(context.Background(), "user-1", "sim-1")
	if sim.Version != versionAfterFirst {
		t.Errorf("idle poll bumped version %d -> %d", versionAfterFirst, sim.Version)
	}
}

func TestTick_NoActiveJobs(t *testing.T) {
	p, _ := newTestPoller(newMockDynamo(), &mockBatch{}, &mockSQS{})
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick with nothing to do errored: %v", err)
	}
}
