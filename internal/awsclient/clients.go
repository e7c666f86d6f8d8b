package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Clients bundles all service clients for convenience.
type Clients struct {
	DynamoDB     DynamoDBAPI
	S3           S3API
	SQS          SQSAPI
	CloudWatch   CloudWatchAPI
	Batch        BatchAPI
	SNS          SNSAPI
	CostExplorer CostExplorerAPI
	Cognito      CognitoAPI
}

// NewClients loads AWS config and returns concrete service clients that implement our interfaces.
func NewClients(ctx context.Context) (*Clients, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &Clients{
		DynamoDB:     dynamodb.NewFromConfig(cfg),
		S3:           s3.NewFromConfig(cfg),
		SQS:          sqs.NewFromConfig(cfg),
		CloudWatch:   cloudwatch.NewFromConfig(cfg),
		Batch:        batch.NewFromConfig(cfg),
		SNS:          sns.NewFromConfig(cfg),
		CostExplorer: costexplorer.NewFromConfig(cfg),
		Cognito:      cognitoidentityprovider.NewFromConfig(cfg),
	}, nil
}
