package simulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
)

func testSim(userID, simID string) Simulation {
	return Simulation{
		UserID:       userID,
		SimulationID: simID,
		Name:         "test run",
		Status:       StatusSubmitted,
		Config: Config{
			SimulationType: "fullchem",
			InstanceType:   "c7g.8xlarge",
			DurationDays:   7,
			Resolution:     "4x5",
		},
	}
}

func TestCreate_DuplicateRejected(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	err := s.Create(ctx, testSim("user-1", "sim-1"))
	if !errors.Is(err, apperr.ErrVersionConflict) {
		t.Fatalf("expected version conflict on duplicate create, got %v", err)
	}
	if mock.putCalls != 2 {
		t.Fatalf("expected 2 put calls, got %d", mock.putCalls)
	}
}

func TestGet_NotFound(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")

	sim, err := s.Get(context.Background(), "user-1", "missing")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if sim != nil {
		t.Fatalf("expected nil for missing simulation, got %+v", sim)
	}
}

func TestCreate_Get_RoundTrip(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	sim, err := s.Get(ctx, "user-1", "sim-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if sim == nil {
		t.Fatal("expected simulation, got nil")
	}
	if sim.Version != 1 {
		t.Fatalf("expected version 1, got %d", sim.Version)
	}
	if sim.Status != StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", sim.Status)
	}
	if sim.Config.InstanceType != "c7g.8xlarge" {
		t.Fatalf("config round trip broken: %+v", sim.Config)
	}
}

func TestApplyStatus_VersionConflict(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// stale writer holds version 1 while another writer advances it
	if err := s.ApplyStatus(ctx, "user-1", "sim-1", 1, StatusUpdate{Status: StatusValidating}); err != nil {
		t.Fatalf("first ApplyStatus error: %v", err)
	}
	err := s.ApplyStatus(ctx, "user-1", "sim-1", 1, StatusUpdate{Status: StatusQueued})
	if !errors.Is(err, apperr.ErrVersionConflict) {
		t.Fatalf("expected version conflict for stale writer, got %v", err)
	}

	// the winner's write is intact
	sim, err := s.Get(ctx, "user-1", "sim-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if sim.Status != StatusValidating || sim.Version != 2 {
		t.Fatalf("expected VALIDATING v2, got %s v%d", sim.Status, sim.Version)
	}
}

func TestApplyStatus_ProgressAndDetails(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	started := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	p := 42
	err := s.ApplyStatus(ctx, "user-1", "sim-1", 1, StatusUpdate{
		Status:    StatusRunning,
		Details:   "simulation running",
		Progress:  &p,
		StartedAt: &started,
	})
	if err != nil {
		t.Fatalf("ApplyStatus error: %v", err)
	}

	sim, _ := s.Get(ctx, "user-1", "sim-1")
	if sim.Progress != 42 {
		t.Fatalf("expected progress 42, got %d", sim.Progress)
	}
	if sim.StatusDetails != "simulation running" {
		t.Fatalf("details not stored: %q", sim.StatusDetails)
	}
	if sim.StartedAt == nil || !sim.StartedAt.Equal(started) {
		t.Fatalf("started_at not stored: %v", sim.StartedAt)
	}

	// a later poll must not rewrite started_at
	later := started.Add(time.Hour)
	p2 := 60
	err = s.ApplyStatus(ctx, "user-1", "sim-1", 2, StatusUpdate{
		Status:    StatusRunning,
		Progress:  &p2,
		StartedAt: &later,
	})
	if err != nil {
		t.Fatalf("second ApplyStatus error: %v", err)
	}
	sim, _ = s.Get(ctx, "user-1", "sim-1")
	if !sim.StartedAt.Equal(started) {
		t.Fatalf("started_at rewritten to %v, want %v", sim.StartedAt, started)
	}
	if sim.Progress != 60 {
		t.Fatalf("expected progress 60, got %d", sim.Progress)
	}
}

func TestApplyStatus_CompletedForcesProgressAndStampsOnce(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	summary := &ResultSummary{OutputFiles: 3, TotalSizeBytes: 1024}
	if err := s.ApplyStatus(ctx, "user-1", "sim-1", 1, StatusUpdate{
		Status:  StatusCompleted,
		Summary: summary,
	}); err != nil {
		t.Fatalf("ApplyStatus error: %v", err)
	}

	sim, _ := s.Get(ctx, "user-1", "sim-1")
	if sim.Progress != 100 {
		t.Fatalf("COMPLETED must force progress 100, got %d", sim.Progress)
	}
	if sim.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
	if sim.ResultSummary == nil || sim.ResultSummary.OutputFiles != 3 {
		t.Fatalf("result summary not stored: %+v", sim.ResultSummary)
	}

	firstStamp := *sim.CompletedAt
	// a redundant terminal write keeps the original stamp
	if err := s.ApplyStatus(ctx, "user-1", "sim-1", 2, StatusUpdate{Status: StatusCompleted}); err != nil {
		t.Fatalf("second terminal write error: %v", err)
	}
	sim, _ = s.Get(ctx, "user-1", "sim-1")
	if !sim.CompletedAt.Equal(firstStamp) {
		t.Fatalf("completed_at rewritten to %v, want %v", sim.CompletedAt, firstStamp)
	}
}

func TestBindBatchJob_SetOnce(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := s.BindBatchJob(ctx, "user-1", "sim-1", 1, "job-abc", 7*time.Hour); err != nil {
		t.Fatalf("BindBatchJob error: %v", err)
	}
	sim, _ := s.Get(ctx, "user-1", "sim-1")
	if sim.BatchJobID != "job-abc" {
		t.Fatalf("batch job id not stored: %q", sim.BatchJobID)
	}
	if sim.Status != StatusRunning {
		t.Fatalf("expected RUNNING after bind, got %s", sim.Status)
	}
	if sim.ExpectedRuntimeMS != (7 * time.Hour).Milliseconds() {
		t.Fatalf("expected runtime not stored: %d", sim.ExpectedRuntimeMS)
	}

	// a redelivered submit must not bind a second job
	err := s.BindBatchJob(ctx, "user-1", "sim-1", 2, "job-xyz", 7*time.Hour)
	if !errors.Is(err, apperr.ErrVersionConflict) {
		t.Fatalf("expected conflict binding second job, got %v", err)
	}
	sim, _ = s.Get(ctx, "user-1", "sim-1")
	if sim.BatchJobID != "job-abc" {
		t.Fatalf("batch job id overwritten: %q", sim.BatchJobID)
	}
}

func TestListByStatus(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	for _, id := range []string{"sim-1", "sim-2", "sim-3"} {
		if err := s.Create(ctx, testSim("user-1", id)); err != nil {
			t.Fatalf("Create %s error: %v", id, err)
		}
	}
	if err := s.ApplyStatus(ctx, "user-1", "sim-2", 1, StatusUpdate{Status: StatusRunning}); err != nil {
		t.Fatalf("ApplyStatus error: %v", err)
	}

	running, err := s.ListByStatus(ctx, StatusRunning)
	if err != nil {
		t.Fatalf("ListByStatus error: %v", err)
	}
	if len(running) != 1 || running[0].SimulationID != "sim-2" {
		t.Fatalf("expected only sim-2 RUNNING, got %+v", running)
	}

	submitted, err := s.ListByStatus(ctx, StatusSubmitted)
	if err != nil {
		t.Fatalf("ListByStatus error: %v", err)
	}
	if len(submitted) != 2 {
		t.Fatalf("expected 2 SUBMITTED, got %d", len(submitted))
	}
}

func TestListByUser(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := s.Create(ctx, testSim("user-2", "sim-2")); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	sims, err := s.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(sims) != 1 || sims[0].SimulationID != "sim-1" {
		t.Fatalf("expected only user-1 simulations, got %+v", sims)
	}
}

// guard against the mock drifting from the real update shape
func TestApplyStatus_UsesStatusNamePlaceholder(t *testing.T) {
	mock := newSimpleMock()
	s := NewStore(mock, "simulations")
	ctx := context.Background()

	if err := s.Create(ctx, testSim("user-1", "sim-1")); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := s.ApplyStatus(ctx, "user-1", "sim-1", 1, StatusUpdate{Status: StatusQueued}); err != nil {
		t.Fatalf("ApplyStatus error: %v", err)
	}
	item := mock.table["user-1#sim-1"]
	st, ok := item["status"].(*types.AttributeValueMemberS)
	if !ok || st.Value != string(StatusQueued) {
		t.Fatalf("status attribute not written: %+v", item["status"])
	}
}
