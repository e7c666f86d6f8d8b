// Package config builds the process configuration once at startup.
// Business logic never reads the environment directly; every handler
// receives this struct by parameter.
package config

import (
	"os"
	"strconv"
)

// Config carries every table name, queue URL and tuning knob the
// workflow binaries need.
type Config struct {
	Region string

	// DynamoDB tables
	SimulationsTable  string
	CostRecordsTable  string
	BudgetsTable      string
	UserProfilesTable string

	// S3 buckets
	ConfigBucket string
	OutputBucket string

	// SQS queues (workflow steps)
	SubmitQueueURL  string
	ResultsQueueURL string

	// AWS Batch
	JobQueue              string
	JobDefinitionGraviton string
	JobDefinitionX86      string

	// Notifications and identity
	AlertTopicARN string
	UserPoolID    string

	// Cost tracking
	MetricsNamespace string
	SpotDiscount     float64 // fraction of on-demand rate actually paid
	BudgetRealert    bool    // re-fire alerts on later days while still over threshold
}

// Load reads the environment into a Config. Call once from main.
func Load() Config {
	return Config{
		Region:                getenvDefault("AWS_REGION", "us-east-1"),
		SimulationsTable:      getenvDefault("SIMULATIONS_TABLE", "simulations"),
		CostRecordsTable:      getenvDefault("COST_RECORDS_TABLE", "cost-records"),
		BudgetsTable:          getenvDefault("BUDGETS_TABLE", "budgets"),
		UserProfilesTable:     getenvDefault("USER_PROFILES_TABLE", "user-profiles"),
		ConfigBucket:          os.Getenv("CONFIG_BUCKET"),
		OutputBucket:          os.Getenv("OUTPUT_BUCKET"),
		SubmitQueueURL:        os.Getenv("SUBMIT_QUEUE_URL"),
		ResultsQueueURL:       os.Getenv("RESULTS_QUEUE_URL"),
		JobQueue:              getenvDefault("BATCH_JOB_QUEUE", "geos-chem-queue"),
		JobDefinitionGraviton: getenvDefault("JOB_DEFINITION_GRAVITON", "geos-chem-graviton"),
		JobDefinitionX86:      getenvDefault("JOB_DEFINITION_X86", "geos-chem-x86"),
		AlertTopicARN:         os.Getenv("ALERT_TOPIC_ARN"),
		UserPoolID:            os.Getenv("USER_POOL_ID"),
		MetricsNamespace:      getenvDefault("METRICS_NAMESPACE", "GeosChem/CostTracking"),
		SpotDiscount:          getenvFloat("SPOT_DISCOUNT", 0.7),
		BudgetRealert:         getenvBool("BUDGET_REALERT", true),
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
