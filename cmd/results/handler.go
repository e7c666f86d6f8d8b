package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/results"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
	"github.com/geoschem-cloud/simulation-workflow/internal/userprofile"
	"github.com/geoschem-cloud/simulation-workflow/internal/workflow"
)

// Handler consumes process_results messages, summarizes the output
// objects and marks the simulation COMPLETED.
type Handler struct {
	sims      *simulation.Store
	processor *results.Processor
	profiles  *userprofile.Store
}

func NewHandler(sims *simulation.Store, processor *results.Processor, profiles *userprofile.Store) *Handler {
	return &Handler{sims: sims, processor: processor, profiles: profiles}
}

func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		if err := h.processMessage(ctx, record); err != nil {
			log.Printf("[results] message %s failed: %v", record.MessageId, err)
			return err
		}
	}
	return nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	decoded, err := workflow.Decode([]byte(record.Body))
	if err != nil {
		var unknown *workflow.ErrUnknownKind
		if errors.As(err, &unknown) {
			// Not ours; drop rather than poison the queue.
			log.Printf("[results] dropping message with kind %q", unknown.Kind)
			return nil
		}
		return err
	}
	msg, ok := decoded.(workflow.ProcessResults)
	if !ok {
		log.Printf("[results] dropping unexpected message type %T", decoded)
		return nil
	}

	sim, err := h.sims.Get(ctx, msg.UserID, msg.SimulationID)
	if err != nil {
		return fmt.Errorf("load simulation %s: %w", msg.SimulationID, err)
	}
	if sim == nil {
		return fmt.Errorf("simulation %s: %w", msg.SimulationID, apperr.ErrNotFound)
	}
	if sim.Status.Terminal() {
		// Redelivery after completion; nothing left to do.
		log.Printf("[results] simulation=%s already %s, skipping", sim.SimulationID, sim.Status)
		return nil
	}

	summary, err := h.processor.Process(ctx, msg.OutputLocation)
	if err != nil {
		return fmt.Errorf("process results for %s: %w", msg.SimulationID, err)
	}

	if err := h.sims.ApplyStatus(ctx, sim.UserID, sim.SimulationID, sim.Version, simulation.StatusUpdate{
		Status:  simulation.StatusCompleted,
		Details: "results available",
		Summary: summary,
	}); err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			// Another writer advanced the record; redelivery will
			// observe the new version.
			return err
		}
		return fmt.Errorf("complete simulation %s: %w", sim.SimulationID, err)
	}

	// Quota accounting is best effort; a miss here never blocks
	// completion.
	if summary.Performance != nil && summary.Performance.WallTimeSeconds > 0 {
		hours := summary.Performance.WallTimeSeconds / 3600
		if err := h.profiles.AddUsage(ctx, sim.UserID, hours); err != nil {
			log.Printf("[results] usage update for user=%s failed: %v", sim.UserID, err)
		}
	}

	log.Printf("[results] simulation=%s completed, %d output files, %d bytes",
		sim.SimulationID, summary.OutputFiles, summary.TotalSizeBytes)
	return nil
}
