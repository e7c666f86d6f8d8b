package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/costs"
	"github.com/geoschem-cloud/simulation-workflow/internal/validation"
)

// RegisterBudgetRoutes registers budget CRUD.
func RegisterBudgetRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	budgets := costs.NewBudgetStore(cfg.DynamoDB, cfg.App.BudgetsTable)

	r.POST("/budgets", func(c *gin.Context) {
		var req validation.CreateBudgetRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		now := time.Now().UTC()
		b := costs.Budget{
			UserID:         req.UserID,
			BudgetID:       uuid.NewString(),
			Name:           req.Name,
			Amount:         req.Amount,
			TimePeriod:     req.TimePeriod,
			AlertThreshold: req.AlertThreshold,
			PeriodStart:    time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
			Status:         costs.BudgetStatusActive,
		}
		if err := budgets.Put(c.Request.Context(), b); err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to create budget"))
			return
		}
		c.JSON(http.StatusCreated, b)
	})

	r.GET("/budgets", func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_user_id"})
			return
		}
		list, err := budgets.List(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to list budgets"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"budgets": list})
	})

	r.PUT("/budgets/:id", func(c *gin.Context) {
		var req validation.CreateBudgetRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		ctx := c.Request.Context()

		existing, err := budgets.Get(ctx, req.UserID, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to fetch budget"))
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, apperr.Envelope(apperr.ErrNotFound, "budget not found"))
			return
		}

		existing.Name = req.Name
		existing.Amount = req.Amount
		existing.TimePeriod = req.TimePeriod
		existing.AlertThreshold = req.AlertThreshold
		if err := budgets.Put(ctx, *existing); err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to update budget"))
			return
		}
		c.JSON(http.StatusOK, existing)
	})

	r.DELETE("/budgets/:id", func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_user_id"})
			return
		}
		if err := budgets.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to delete budget"))
			return
		}
		c.Status(http.StatusNoContent)
	})
}
