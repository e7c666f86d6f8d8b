package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/batchjob"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
	"github.com/geoschem-cloud/simulation-workflow/internal/workflow"
)

// polledStatuses are the lifecycle states that still track an external
// job.
var polledStatuses = []simulation.Status{
	simulation.StatusQueued,
	simulation.StatusRunning,
	simulation.StatusProcessingResults,
	simulation.StatusUnknown,
}

// Poller reconciles simulation records with the external scheduler.
// A tick is idempotent: polling an unchanged job writes nothing.
type Poller struct {
	sims    *simulation.Store
	batch   *batchjob.Client
	results *awsclient.Publisher
	nowFunc func() time.Time
}

func NewPoller(sims *simulation.Store, batch *batchjob.Client, results *awsclient.Publisher) *Poller {
	return &Poller{
		sims:    sims,
		batch:   batch,
		results: results,
		nowFunc: time.Now,
	}
}

// Tick polls every active simulation once.
func (p *Poller) Tick(ctx context.Context) error {
	var active []simulation.Simulation
	for _, status := range polledStatuses {
		sims, err := p.sims.ListByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("list %s simulations: %w", status, err)
		}
		active = append(active, sims...)
	}

	jobIDs := make([]string, 0, len(active))
	for _, sim := range active {
		if sim.BatchJobID != "" {
			jobIDs = append(jobIDs, sim.BatchJobID)
		}
	}
	if len(jobIDs) == 0 {
		return nil
	}

	details, err := p.batch.Describe(ctx, jobIDs)
	if err != nil {
		return err
	}

	for _, sim := range active {
		if sim.BatchJobID == "" {
			continue
		}
		detail, ok := details[sim.BatchJobID]
		if !ok {
			log.Printf("[monitor] job %s for simulation=%s not known to scheduler", sim.BatchJobID, sim.SimulationID)
			continue
		}
		if err := p.reconcile(ctx, sim, detail); err != nil {
			// A lost race means another writer advanced the record;
			// the next tick converges.
			if errors.Is(err, apperr.ErrVersionConflict) {
				log.Printf("[monitor] simulation=%s concurrent update, skipping", sim.SimulationID)
				continue
			}
			return err
		}
	}
	return nil
}

func (p *Poller) reconcile(ctx context.Context, sim simulation.Simulation, detail batchjob.JobDetail) error {
	mapped := simulation.MapBatchStatus(detail.Status)

	switch mapped {
	case simulation.StatusQueued:
		if sim.Status == simulation.StatusQueued {
			return nil
		}
		return p.sims.ApplyStatus(ctx, sim.UserID, sim.SimulationID, sim.Version, simulation.StatusUpdate{
			Status:  mapped,
			Details: "waiting for compute capacity",
		})

	case simulation.StatusRunning:
		progress := sim.Progress
		var startedAt *time.Time
		if detail.StartedAt != nil {
			startedAt = detail.StartedAt
			elapsed := p.nowFunc().Sub(*detail.StartedAt)
			expected := time.Duration(sim.ExpectedRuntimeMS) * time.Millisecond
			if est := simulation.EstimateProgress(elapsed, expected); est > progress {
				// progress never moves backwards on a poll
				progress = est
			}
		}
		if sim.Status == simulation.StatusRunning && progress == sim.Progress && sim.StartedAt != nil {
			return nil
		}
		return p.sims.ApplyStatus(ctx, sim.UserID, sim.SimulationID, sim.Version, simulation.StatusUpdate{
			Status:    mapped,
			Details:   "simulation running",
			Progress:  &progress,
			StartedAt: startedAt,
		})

	case simulation.StatusProcessingResults:
		if sim.Status != simulation.StatusProcessingResults {
			if err := p.sims.ApplyStatus(ctx, sim.UserID, sim.SimulationID, sim.Version, simulation.StatusUpdate{
				Status:  mapped,
				Details: "extracting results",
			}); err != nil {
				return err
			}
		}
		// Keep sending until the results worker completes the record.
		// A failed or lost send would otherwise strand the simulation,
		// and the worker tolerates duplicate delivery.
		body, err := workflow.Encode(workflow.ProcessResults{
			SimulationID:   sim.SimulationID,
			UserID:         sim.UserID,
			OutputLocation: sim.OutputLocation,
		})
		if err != nil {
			return err
		}
		return p.results.Send(ctx, body, map[string]string{
			"kind":          workflow.KindProcessResults,
			"simulation_id": sim.SimulationID,
		})

	case simulation.StatusFailed:
		return p.sims.ApplyStatus(ctx, sim.UserID, sim.SimulationID, sim.Version, simulation.StatusUpdate{
			Status:  mapped,
			Details: detail.FailureReason(),
		})

	default: // StatusUnknown
		if sim.Status == simulation.StatusUnknown {
			return nil
		}
		return p.sims.ApplyStatus(ctx, sim.UserID, sim.SimulationID, sim.Version, simulation.StatusUpdate{
			Status:  simulation.StatusUnknown,
			Details: fmt.Sprintf("unrecognized scheduler status %q", detail.Status),
		})
	}
}
