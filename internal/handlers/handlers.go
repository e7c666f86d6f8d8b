// Package handlers wires the REST surface onto the domain stores.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/config"
)

// HandlerConfig groups dependencies for all route groups.
type HandlerConfig struct {
	DynamoDB awsclient.DynamoDBAPI
	S3       awsclient.S3API
	SQS      awsclient.SQSAPI
	Cognito  awsclient.CognitoAPI
	App      config.Config
}

// RegisterRoutes registers every route group on the engine.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	RegisterSimulationRoutes(r, cfg)
	RegisterCostRoutes(r, cfg)
	RegisterBudgetRoutes(r, cfg)
	RegisterUserRoutes(r, cfg)
}
