package costs

import (
	"context"
	"fmt"
	"log"
	"time"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
)

// Tracker computes real-time cost for every RUNNING simulation and
// publishes aggregate metrics. It runs out of the request path on a
// periodic schedule.
type Tracker struct {
	sims         *simulation.Store
	records      *Store
	metrics      *awsclient.Metrics
	spotDiscount float64
	nowFunc      func() time.Time
}

func NewTracker(sims *simulation.Store, records *Store, metrics *awsclient.Metrics, spotDiscount float64) *Tracker {
	return &Tracker{
		sims:         sims,
		records:      records,
		metrics:      metrics,
		spotDiscount: spotDiscount,
		nowFunc:      time.Now,
	}
}

// Tick runs one tracking pass. Per-simulation failures are logged and
// skipped so one bad record cannot stall the whole pass.
func (t *Tracker) Tick(ctx context.Context) error {
	running, err := t.sims.ListByStatus(ctx, simulation.StatusRunning)
	if err != nil {
		return fmt.Errorf("list running simulations: %w", err)
	}

	now := t.nowFunc().UTC()
	date := now.Format("2006-01-02")
	month := now.Format("2006-01")

	var totalCost, totalHours float64
	data := []awsclient.Metric{}

	for _, sim := range running {
		started := sim.CreatedAt
		if sim.StartedAt != nil {
			started = *sim.StartedAt
		}
		elapsed := now.Sub(started)
		if elapsed < 0 {
			elapsed = 0
		}
		hours := elapsed.Hours()

		rate := BaseHourlyRate(sim.Config.InstanceType)
		if sim.Config.UseSpot {
			rate *= t.spotDiscount
		}
		cost := roundCents(hours * rate)

		rec := CostRecord{
			UserID:     sim.UserID,
			ResourceID: SimulationResourceID(sim.SimulationID, date),
			Cost:       cost,
			Date:       date,
			TimePeriod: month,
		}
		if err := t.records.Put(ctx, rec); err != nil {
			log.Printf("[costtracker] record simulation=%s: %v", sim.SimulationID, err)
			continue
		}

		totalCost += cost
		totalHours += hours
		data = append(data,
			awsclient.Metric{
				Name:       "SimulationCost",
				Value:      cost,
				Unit:       cwtypes.StandardUnitNone,
				Dimensions: map[string]string{"SimulationId": sim.SimulationID},
			},
			awsclient.Metric{
				Name:       "ElapsedHours",
				Value:      hours,
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: map[string]string{"SimulationId": sim.SimulationID},
			},
		)
	}

	data = append(data,
		awsclient.Metric{Name: "TotalActiveCost", Value: totalCost, Unit: cwtypes.StandardUnitNone},
		awsclient.Metric{Name: "ActiveSimulations", Value: float64(len(running)), Unit: cwtypes.StandardUnitCount},
	)

	if err := t.metrics.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish cost metrics: %w", err)
	}

	log.Printf("[costtracker] active=%d totalCost=%.2f totalHours=%.1f", len(running), totalCost, totalHours)
	return nil
}
