// Package workflow defines the messages passed between lifecycle
// steps. Every message is an envelope discriminated by kind, so an
// unrecognized shape is an explicit decode error instead of a silent
// zero value at the consumer.
package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
)

// Message kinds
const (
	KindSubmitBatchJob = "submit_batch_job"
	KindProcessResults = "process_results"
	KindStatusUpdate   = "status_update"
)

// ErrUnknownKind wraps the kind that no consumer recognizes.
type ErrUnknownKind struct {
	Kind string
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown workflow message kind %q", e.Kind)
}

type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitBatchJob asks the worker to place a validated simulation with
// the external scheduler.
type SubmitBatchJob struct {
	SimulationID   string            `json:"simulation_id"`
	UserID         string            `json:"user_id"`
	Config         simulation.Config `json:"config"`
	ConfigLocation string            `json:"config_location"`
	OutputLocation string            `json:"output_location"`
}

// ProcessResults asks the results processor to summarize a finished
// run.
type ProcessResults struct {
	SimulationID   string `json:"simulation_id"`
	UserID         string `json:"user_id"`
	OutputLocation string `json:"output_location"`
}

// StatusUpdate carries an externally triggered transition, e.g. a
// user-initiated cancel.
type StatusUpdate struct {
	SimulationID  string            `json:"simulation_id"`
	UserID        string            `json:"user_id"`
	Status        simulation.Status `json:"status"`
	StatusDetails string            `json:"status_details,omitempty"`
}

// Encode wraps a message in its envelope. Only the three step types
// are valid payloads.
func Encode(msg interface{}) (string, error) {
	var kind string
	switch msg.(type) {
	case SubmitBatchJob, *SubmitBatchJob:
		kind = KindSubmitBatchJob
	case ProcessResults, *ProcessResults:
		kind = KindProcessResults
	case StatusUpdate, *StatusUpdate:
		kind = KindStatusUpdate
	default:
		return "", fmt.Errorf("unsupported workflow message type %T", msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	body, err := json.Marshal(envelope{Kind: kind, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(body), nil
}

// Decode parses an envelope and returns the concrete message. The
// switch is exhaustive over the declared kinds; anything else is an
// *ErrUnknownKind.
func Decode(body []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Kind {
	case KindSubmitBatchJob:
		var msg SubmitBatchJob
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		return msg, nil
	case KindProcessResults:
		var msg ProcessResults
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		return msg, nil
	case KindStatusUpdate:
		var msg StatusUpdate
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
		}
		return msg, nil
	default:
		return nil, &ErrUnknownKind{Kind: env.Kind}
	}
}
