package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/batchjob"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
	"github.com/geoschem-cloud/simulation-workflow/internal/workflow"
)

// Processor consumes the workflow queue: submission messages are
// placed with the external scheduler, status updates are applied to
// the simulation record.
type Processor struct {
	sims  *simulation.Store
	batch *batchjob.Client
}

// NewProcessor creates a worker processor with its stores injected.
func NewProcessor(sims *simulation.Store, batch *batchjob.Client) *Processor {
	return &Processor{sims: sims, batch: batch}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("[worker] error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	decoded, err := workflow.Decode([]byte(rec.Body))
	if err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	switch msg := decoded.(type) {
	case workflow.SubmitBatchJob:
		return p.submit(ctx, msg)
	case workflow.StatusUpdate:
		return p.applyUpdate(ctx, msg)
	default:
		return fmt.Errorf("unexpected message type %T on submit queue", decoded)
	}
}

// applyUpdate lands an externally triggered transition, currently the
// contended-cancel path from the API. A version conflict is returned
// so the message redelivers until the write lands or the record is
// terminal.
func (p *Processor) applyUpdate(ctx context.Context, msg workflow.StatusUpdate) error {
	sim, err := p.sims.Get(ctx, msg.UserID, msg.SimulationID)
	if err != nil {
		return fmt.Errorf("fetch simulation: %w", err)
	}
	if sim == nil {
		return fmt.Errorf("simulation not found: %s: %w", msg.SimulationID, apperr.ErrNotFound)
	}
	if sim.Status.Terminal() {
		log.Printf("[worker] simulation=%s already terminal (%s), dropping %s update", msg.SimulationID, sim.Status, msg.Status)
		return nil
	}
	if err := p.sims.ApplyStatus(ctx, msg.UserID, msg.SimulationID, sim.Version, simulation.StatusUpdate{
		Status:  msg.Status,
		Details: msg.StatusDetails,
	}); err != nil {
		return fmt.Errorf("apply %s to simulation %s: %w", msg.Status, msg.SimulationID, err)
	}
	log.Printf("[worker] simulation=%s moved to %s", msg.SimulationID, msg.Status)
	return nil
}

func (p *Processor) submit(ctx context.Context, msg workflow.SubmitBatchJob) error {
	log.Printf("[worker] received simulation=%s user=%s", msg.SimulationID, msg.UserID)

	sim, err := p.sims.Get(ctx, msg.UserID, msg.SimulationID)
	if err != nil {
		return fmt.Errorf("fetch simulation: %w", err)
	}
	if sim == nil {
		// Should never happen; DLQ if it does
		return fmt.Errorf("simulation not found: %s: %w", msg.SimulationID, apperr.ErrNotFound)
	}

	switch {
	case sim.BatchJobID != "":
		// Duplicate delivery after a successful submit; swallow.
		log.Printf("[worker] simulation=%s already bound to job=%s", msg.SimulationID, sim.BatchJobID)
		return nil
	case sim.Status.Terminal():
		log.Printf("[worker] simulation=%s already terminal (%s), skipping submit", msg.SimulationID, sim.Status)
		return nil
	}

	// SUBMITTED -> VALIDATING while we build the request.
	err = p.sims.ApplyStatus(ctx, msg.UserID, msg.SimulationID, sim.Version, simulation.StatusUpdate{
		Status:  simulation.StatusValidating,
		Details: "validating configuration",
	})
	if errors.Is(err, apperr.ErrVersionConflict) {
		// Competing worker or a concurrent cancel; re-deliver decides.
		log.Printf("[worker] simulation=%s version conflict before submit", msg.SimulationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("status to VALIDATING: %w", err)
	}

	jobID, err := p.batch.Submit(ctx, batchjob.SubmitRequest{
		SimulationID:   msg.SimulationID,
		UserID:         msg.UserID,
		Config:         msg.Config,
		ConfigLocation: msg.ConfigLocation,
		OutputLocation: msg.OutputLocation,
	})
	if err != nil {
		// Scheduling failure: the record stays VALIDATING and the
		// message is retried; no partial rollback is attempted.
		return err
	}

	expected := batchjob.ExpectedRuntime(msg.Config.DurationDays, msg.Config.SimulationType, msg.Config.Resolution)
	if err := p.sims.BindBatchJob(ctx, msg.UserID, msg.SimulationID, sim.Version+1, jobID, expected); err != nil {
		// Job is running but the record could not be updated; the
		// monitor converges it on the next poll.
		return fmt.Errorf("bind job %s: %w", jobID, err)
	}

	log.Printf("[worker] submitted simulation=%s job=%s", msg.SimulationID, jobID)
	return nil
}
