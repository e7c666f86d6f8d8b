package costs

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	ceTypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
)

// DailyAggregator pulls the previous UTC day's billed cost grouped by
// the UserId/SimulationId tags, upserts one CostRecord per
// (user, simulation, date), and re-evaluates active budgets.
type DailyAggregator struct {
	ce       awsclient.CostExplorerAPI
	records  *Store
	budgets  *BudgetStore
	notifier *Notifier
	realert  bool
	nowFunc  func() time.Time
}

func NewDailyAggregator(ce awsclient.CostExplorerAPI, records *Store, budgets *BudgetStore, notifier *Notifier, realert bool) *DailyAggregator {
	return &DailyAggregator{
		ce:       ce,
		records:  records,
		budgets:  budgets,
		notifier: notifier,
		realert:  realert,
		nowFunc:  time.Now,
	}
}

// Run performs one daily aggregation pass.
func (a *DailyAggregator) Run(ctx context.Context) error {
	now := a.nowFunc().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -1)

	perUser, err := a.fetchDailyCosts(ctx, start, end)
	if err != nil {
		return err
	}

	date := start.Format("2006-01-02")
	month := start.Format("2006-01")

	for userID, simCosts := range perUser {
		for simulationID, cost := range simCosts {
			rec := CostRecord{
				UserID:     userID,
				ResourceID: SimulationResourceID(simulationID, date),
				Cost:       cost,
				Date:       date,
				TimePeriod: month,
			}
			if err := a.records.Put(ctx, rec); err != nil {
				return fmt.Errorf("put cost record: %w", err)
			}
		}

		// Month-to-date is read after the day's records land. Billed
		// figures overwrite same-day tracker estimates on the same
		// (simulation, date) key, so summing before the puts would
		// count the replaced estimate and the billed cost together.
		spend, err := a.records.MonthToDate(ctx, userID, month)
		if err != nil {
			return fmt.Errorf("month-to-date for %s: %w", userID, err)
		}

		if err := a.evaluateBudgets(ctx, userID, start, month, spend); err != nil {
			return err
		}
	}

	log.Printf("[dailycost] aggregated %s for %d users", date, len(perUser))
	return nil
}

func (a *DailyAggregator) fetchDailyCosts(ctx context.Context, start, end time.Time) (map[string]map[string]float64, error) {
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &ceTypes.DateInterval{
			Start: sdkaws.String(start.Format("2006-01-02")),
			End:   sdkaws.String(end.Format("2006-01-02")),
		},
		Granularity: ceTypes.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
		GroupBy: []ceTypes.GroupDefinition{
			{Type: ceTypes.GroupDefinitionTypeTag, Key: sdkaws.String("UserId")},
			{Type: ceTypes.GroupDefinitionTypeTag, Key: sdkaws.String("SimulationId")},
		},
	}

	result, err := a.ce.GetCostAndUsage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get cost and usage: %w", err)
	}

	perUser := map[string]map[string]float64{}
	for _, rbt := range result.ResultsByTime {
		for _, group := range rbt.Groups {
			if len(group.Keys) < 2 {
				continue
			}
			userID := tagValue(group.Keys[0])
			simulationID := tagValue(group.Keys[1])
			if userID == "" || simulationID == "" {
				continue // untagged spend is not attributable
			}
			metric, ok := group.Metrics["UnblendedCost"]
			if !ok || metric.Amount == nil {
				continue
			}
			cost, err := strconv.ParseFloat(*metric.Amount, 64)
			if err != nil || cost <= 0 {
				continue
			}
			if perUser[userID] == nil {
				perUser[userID] = map[string]float64{}
			}
			perUser[userID][simulationID] += cost
		}
	}
	return perUser, nil
}

func (a *DailyAggregator) evaluateBudgets(ctx context.Context, userID string, date time.Time, month string, spend float64) error {
	budgets, err := a.budgets.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list budgets for %s: %w", userID, err)
	}

	for _, b := range budgets {
		if !b.Covers(date) {
			continue
		}
		if !ShouldAlert(b, spend, 0) {
			continue
		}
		if !a.realert && b.LastAlertPeriod == month {
			log.Printf("[dailycost] budget=%s already alerted for %s, realert disabled", b.BudgetID, month)
			continue
		}
		if err := a.notifier.BudgetAlert(ctx, b, spend); err != nil {
			return fmt.Errorf("alert budget %s: %w", b.BudgetID, err)
		}
		if err := a.budgets.MarkAlerted(ctx, userID, b.BudgetID, month); err != nil {
			return fmt.Errorf("mark alerted %s: %w", b.BudgetID, err)
		}
		log.Printf("[dailycost] budget alert user=%s budget=%s spend=%.2f", userID, b.BudgetID, spend)
	}
	return nil
}

// tagValue extracts the value from a Cost Explorer tag group key of
// the form "TagName$value".
func tagValue(key string) string {
	if i := strings.IndexByte(key, '$'); i >= 0 {
		return key[i+1:]
	}
	return ""
}
