package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/costs"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
	"github.com/geoschem-cloud/simulation-workflow/internal/validation"
	"github.com/geoschem-cloud/simulation-workflow/internal/workflow"
)

// RegisterSimulationRoutes registers submit, read and cancel routes.
func RegisterSimulationRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	sims := simulation.NewStore(cfg.DynamoDB, cfg.App.SimulationsTable)
	publisher := awsclient.NewPublisher(cfg.SQS, cfg.App.SubmitQueueURL)

	r.POST("/simulations", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.SubmitSimulationRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		simulationID := uuid.NewString()
		configLocation := fmt.Sprintf("s3://%s/%s/%s/config.json", cfg.App.ConfigBucket, req.UserID, simulationID)
		outputLocation := fmt.Sprintf("s3://%s/%s/%s/output", cfg.App.OutputBucket, req.UserID, simulationID)

		// Persist the configuration blob before the record exists, so
		// a half-failed submit leaves no record pointing at nothing.
		configBody, err := json.Marshal(req.Config)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to encode simulation config"))
			return
		}
		configKey := fmt.Sprintf("%s/%s/config.json", req.UserID, simulationID)
		_, err = cfg.S3.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &cfg.App.ConfigBucket,
			Key:    &configKey,
			Body:   bytes.NewReader(configBody),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to store simulation config"))
			return
		}

		estimate := costs.Estimate(req.Config.InstanceType, req.Config.SimulationType, req.Config.DurationDays)

		sim := simulation.Simulation{
			UserID:         req.UserID,
			SimulationID:   simulationID,
			Name:           req.SimulationName,
			Status:         simulation.StatusSubmitted,
			Config:         req.Config.Domain(),
			ConfigLocation: configLocation,
			OutputLocation: outputLocation,
			CostEstimate:   estimate,
		}
		if err := sims.Create(ctx, sim); err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to create simulation"))
			return
		}

		body, err := workflow.Encode(workflow.SubmitBatchJob{
			SimulationID:   simulationID,
			UserID:         req.UserID,
			Config:         req.Config.Domain(),
			ConfigLocation: configLocation,
			OutputLocation: outputLocation,
		})
		if err == nil {
			err = publisher.Send(ctx, body, map[string]string{
				"kind":          workflow.KindSubmitBatchJob,
				"simulation_id": simulationID,
				"user_id":       req.UserID,
			})
		}
		if err != nil {
			// Record is already persisted; fail it so the user sees a
			// terminal state instead of a simulation stuck SUBMITTED.
			_ = sims.ApplyStatus(ctx, req.UserID, simulationID, 1, simulation.StatusUpdate{
				Status:  simulation.StatusFailed,
				Details: fmt.Sprintf("enqueue failed: %v", err),
			})
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to enqueue simulation"))
			return
		}

		c.Header("Location", fmt.Sprintf("/simulations/%s", simulationID))
		c.JSON(http.StatusCreated, gin.H{
			"simulationId": simulationID,
			"status":       simulation.StatusSubmitted,
			"costEstimate": estimate,
		})
	})

	r.GET("/simulations", func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_user_id"})
			return
		}
		list, err := sims.ListByUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to list simulations"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"simulations": list})
	})

	r.GET("/simulations/:id", func(c *gin.Context) {
		sim, ok := fetchSimulation(c, sims)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, sim)
	})

	r.POST("/simulations/:id/cancel", func(c *gin.Context) {
		ctx := c.Request.Context()
		sim, ok := fetchSimulation(c, sims)
		if !ok {
			return
		}
		if sim.Status.Terminal() {
			c.JSON(http.StatusConflict, gin.H{"error": "already_terminal", "status": sim.Status})
			return
		}

		upd := simulation.StatusUpdate{
			Status:  simulation.StatusCancelled,
			Details: "cancelled by user",
		}
		err := sims.ApplyStatus(ctx, sim.UserID, sim.SimulationID, sim.Version, upd)
		if errors.Is(err, apperr.ErrVersionConflict) {
			// Another writer advanced the record. Hand the cancel to
			// the worker, which redelivers until it lands or the run
			// reaches a terminal state on its own.
			body, qerr := workflow.Encode(workflow.StatusUpdate{
				SimulationID:  sim.SimulationID,
				UserID:        sim.UserID,
				Status:        simulation.StatusCancelled,
				StatusDetails: "cancelled by user",
			})
			if qerr == nil {
				qerr = publisher.Send(ctx, body, map[string]string{
					"kind":          workflow.KindStatusUpdate,
					"simulation_id": sim.SimulationID,
					"user_id":       sim.UserID,
				})
			}
			if qerr != nil {
				c.JSON(http.StatusInternalServerError, apperr.Envelope(qerr, "failed to cancel simulation"))
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"simulationId": sim.SimulationID, "status": simulation.StatusCancelled})
			return
		}
		if err != nil {
			c.JSON(apperr.HTTPStatus(err), apperr.Envelope(err, "failed to cancel simulation"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"simulationId": sim.SimulationID, "status": simulation.StatusCancelled})
	})
}

func fetchSimulation(c *gin.Context, sims *simulation.Store) (*simulation.Simulation, bool) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_user_id"})
		return nil, false
	}
	sim, err := sims.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to fetch simulation"))
		return nil, false
	}
	if sim == nil {
		c.JSON(http.StatusNotFound, apperr.Envelope(apperr.ErrNotFound, "simulation not found"))
		return nil, false
	}
	return sim, true
}
