package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/joho/godotenv/autoload"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/config"
	"github.com/geoschem-cloud/simulation-workflow/internal/costs"
)

// The daily aggregator replaces the running estimates with billed Cost
// Explorer figures for the previous day and evaluates budgets against
// the month-to-date total. Scheduled once per day, shortly after
// midnight UTC.
func main() {
	ctx := context.Background()
	clients, err := awsclient.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}
	cfg := config.Load()

	aggregator := costs.NewDailyAggregator(
		clients.CostExplorer,
		costs.NewStore(clients.DynamoDB, cfg.CostRecordsTable),
		costs.NewBudgetStore(clients.DynamoDB, cfg.BudgetsTable),
		costs.NewNotifier(clients.SNS, cfg.AlertTopicARN),
		cfg.BudgetRealert,
	)

	handler := func(ctx context.Context) error {
		return aggregator.Run(ctx)
	}

	if os.Getenv("RUN_LOCAL") == "true" {
		if err := handler(ctx); err != nil {
			log.Fatalf("local run error: %v", err)
		}
		return
	}

	lambda.Start(handler)
}
