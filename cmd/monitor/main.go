package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/joho/godotenv/autoload"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/batchjob"
	"github.com/geoschem-cloud/simulation-workflow/internal/config"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
)

// The monitor runs on an EventBridge schedule and reconciles every
// active simulation with the scheduler once per invocation.
func main() {
	ctx := context.Background()
	clients, err := awsclient.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}
	cfg := config.Load()

	poller := NewPoller(
		simulation.NewStore(clients.DynamoDB, cfg.SimulationsTable),
		batchjob.NewClient(clients.Batch, cfg.JobQueue, cfg.JobDefinitionGraviton, cfg.JobDefinitionX86),
		awsclient.NewPublisher(clients.SQS, cfg.ResultsQueueURL),
	)

	handler := func(ctx context.Context) error {
		return poller.Tick(ctx)
	}

	if os.Getenv("RUN_LOCAL") == "true" {
		if err := handler(ctx); err != nil {
			log.Fatalf("local tick error: %v", err)
		}
		return
	}

	lambda.Start(handler)
}
