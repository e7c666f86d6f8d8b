package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/batchjob"
	"github.com/geoschem-cloud/simulation-workflow/internal/costs"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
)

// RegisterCostRoutes registers cost-record reads and the optimization
// recommendations endpoint.
func RegisterCostRoutes(r *gin.Engine, cfg HandlerConfig) {
	records := costs.NewStore(cfg.DynamoDB, cfg.App.CostRecordsTable)
	sims := simulation.NewStore(cfg.DynamoDB, cfg.App.SimulationsTable)

	r.GET("/costs", func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_user_id"})
			return
		}
		period := c.Query("period")
		if period == "" {
			period = time.Now().UTC().Format("2006-01")
		}

		recs, err := records.ListByPeriod(c.Request.Context(), userID, period)
		if err != nil {
			c.JSON(http.StatusInternalServerError, apperr.Envelope(err, "failed to list cost records"))
			return
		}
		var total float64
		for _, rec := range recs {
			total += rec.Cost
		}
		c.JSON(http.StatusOK, gin.H{
			"period":  period,
			"total":   total,
			"records": recs,
		})
	})

	r.GET("/optimization", func(c *gin.Context) {
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
		c.JSON(http.StatusOK, gin.H{"recommendations": recommend(list)})
	})
}

// recommend produces cheap static advice from the user's submission
// history: move to Graviton, use spot for short runs.
func recommend(sims []simulation.Simulation) []gin.H {
	recs := []gin.H{}
	var x86Count, onDemandCount int
	for _, sim := range sims {
		if !batchjob.IsGraviton(sim.Config.InstanceType) {
			x86Count++
		}
		if !sim.Config.UseSpot {
			onDemandCount++
		}
	}
	if x86Count > 0 {
		recs = append(recs, gin.H{
			"type":    "architecture",
			"message": "Graviton (c7g/m7g/r7g) instances run GEOS-Chem at a lower hourly rate than comparable x86 instances.",
			"count":   x86Count,
		})
	}
	if onDemandCount > 0 {
		recs = append(recs, gin.H{
			"type":    "pricing",
			"message": "Spot pricing reduces compute cost for runs that tolerate retries.",
			"count":   onDemandCount,
		})
	}
	return recs
}
