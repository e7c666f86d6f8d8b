package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	_ "github.com/joho/godotenv/autoload"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/config"
	"github.com/geoschem-cloud/simulation-workflow/internal/results"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
	"github.com/geoschem-cloud/simulation-workflow/internal/userprofile"
)

func main() {
	ctx := context.Background()
	clients, err := awsclient.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}
	cfg := config.Load()

	handler := NewHandler(
		simulation.NewStore(clients.DynamoDB, cfg.SimulationsTable),
		results.NewProcessor(clients.S3),
		userprofile.NewStore(clients.DynamoDB, cfg.UserProfilesTable),
	)

	if os.Getenv("RUN_LOCAL") == "true" {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			log.Fatal("LOCAL_SQS_BODY must carry a process_results envelope")
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{Body: body}},
		}
		if err := handler.Handle(ctx, event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(handler.Handle)
}
