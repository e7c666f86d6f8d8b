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
	"github.com/geoschem-cloud/simulation-workflow/internal/userprofile"
)

// The auth sync hook runs as a Cognito post-confirmation trigger and
// seeds a default profile row for the new user. Sync failures are
// logged but never fail the trigger; blocking a signup over a profile
// row is worse than letting the first API call backfill it.
type syncer struct {
	profiles *userprofile.Store
}

func (s *syncer) handle(ctx context.Context, event events.CognitoEventUserPoolsPostConfirmation) (events.CognitoEventUserPoolsPostConfirmation, error) {
	userID := event.Request.UserAttributes["sub"]
	if userID == "" {
		userID = event.UserName
	}
	email := event.Request.UserAttributes["email"]

	created, err := s.profiles.CreateDefault(ctx, userID, email)
	if err != nil {
		log.Printf("[authsync] profile sync for user=%s failed: %v", userID, err)
		return event, nil
	}
	if created {
		log.Printf("[authsync] created profile for user=%s", userID)
	} else {
		log.Printf("[authsync] profile for user=%s already exists", userID)
	}
	return event, nil
}

func main() {
	ctx := context.Background()
	clients, err := awsclient.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}
	cfg := config.Load()

	s := &syncer{profiles: userprofile.NewStore(clients.DynamoDB, cfg.UserProfilesTable)}

	if os.Getenv("RUN_LOCAL") == "true" {
		event := events.CognitoEventUserPoolsPostConfirmation{}
		event.UserName = os.Getenv("LOCAL_USER_ID")
		event.Request.UserAttributes = map[string]string{
			"sub":   os.Getenv("LOCAL_USER_ID"),
			"email": os.Getenv("LOCAL_USER_EMAIL"),
		}
		if _, err := s.handle(ctx, event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(s.handle)
}
