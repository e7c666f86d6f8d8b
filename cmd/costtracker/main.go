package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/joho/godotenv/autoload"
	"github.com/robfig/cron/v3"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/config"
	"github.com/geoschem-cloud/simulation-workflow/internal/costs"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
)

// The cost tracker estimates spend for every running simulation. In
// Lambda it fires on an EventBridge schedule; locally a cron loop
// drives the same tick.
func main() {
	ctx := context.Background()
	clients, err := awsclient.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}
	cfg := config.Load()

	tracker := costs.NewTracker(
		simulation.NewStore(clients.DynamoDB, cfg.SimulationsTable),
		costs.NewStore(clients.DynamoDB, cfg.CostRecordsTable),
		awsclient.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace),
		cfg.SpotDiscount,
	)

	handler := func(ctx context.Context) error {
		return tracker.Tick(ctx)
	}

	if os.Getenv("RUN_LOCAL") == "true" {
		if err := handler(ctx); err != nil {
			log.Fatalf("local tick error: %v", err)
		}
		c := cron.New()
		if _, err := c.AddFunc("@every 5m", func() {
			if err := handler(context.Background()); err != nil {
				log.Printf("[costtracker] tick error: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule tick: %v", err)
		}
		c.Run()
		return
	}

	lambda.Start(handler)
}
