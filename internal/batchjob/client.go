package batchjob

import (
	"fmt"
	"strconv"
	"time"

	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	batchtypes "github.com/aws/aws-sdk-go-v2/service/batch/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/apperr"
	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
)

// Client wraps the Batch scheduler for submit and describe.
type Client struct {
	batch       awsclient.BatchAPI
	jobQueue    string
	gravitonDef string
	x86Def      string
}

func NewClient(api awsclient.BatchAPI, jobQueue, gravitonDef, x86Def string) *Client {
	return &Client{
		batch:       api,
		jobQueue:    jobQueue,
		gravitonDef: gravitonDef,
		x86Def:      x86Def,
	}
}

// SubmitRequest carries everything needed to place one simulation job.
type SubmitRequest struct {
	SimulationID   string
	UserID         string
	Config         simulation.Config
	ConfigLocation string
	OutputLocation string
}

// Submit places the job with the scheduler and returns the job id.
// Failures surface as *apperr.SchedulingError; nothing is persisted
// here, so the caller's record is left in its last-known state.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	vcpus := VCPUs(req.Config.InstanceType)
	memory := MemoryMiB(req.Config.Resolution)
	timeout := CalculateTimeout(req.Config.DurationDays, req.Config.SimulationType)

	input := &batch.SubmitJobInput{
		JobName:       sdkaws.String(fmt.Sprintf("geos-chem-%s", req.SimulationID)),
		JobQueue:      &c.jobQueue,
		JobDefinition: sdkaws.String(DetermineJobDefinition(req.Config.InstanceType, c.gravitonDef, c.x86Def)),
		ContainerOverrides: &batchtypes.ContainerOverrides{
			ResourceRequirements: []batchtypes.ResourceRequirement{
				{Type: batchtypes.ResourceTypeVcpu, Value: sdkaws.String(strconv.Itoa(int(vcpus)))},
				{Type: batchtypes.ResourceTypeMemory, Value: sdkaws.String(strconv.Itoa(int(memory)))},
			},
			Environment: []batchtypes.KeyValuePair{
				{Name: sdkaws.String("SIMULATION_ID"), Value: &req.SimulationID},
				{Name: sdkaws.String("USER_ID"), Value: &req.UserID},
				{Name: sdkaws.String("CONFIG_LOCATION"), Value: &req.ConfigLocation},
				{Name: sdkaws.String("OUTPUT_LOCATION"), Value: &req.OutputLocation},
				{Name: sdkaws.String("OMP_NUM_THREADS"), Value: sdkaws.String(strconv.Itoa(int(vcpus)))},
			},
		},
		Timeout: &batchtypes.JobTimeout{
			AttemptDurationSeconds: &timeout,
		},
		Tags: map[string]string{
			"UserId":       req.UserID,
			"SimulationId": req.SimulationID,
		},
	}

	out, err := c.batch.SubmitJob(ctx, input)
	if err != nil {
		return "", &apperr.SchedulingError{Op: "submit", Err: err}
	}
	return sdkaws.ToString(out.JobId), nil
}

// JobDetail is the scheduler view of one job.
type JobDetail struct {
	JobID           string
	Status          string
	StatusReason    string
	ContainerReason string
	ExitCode        *int32
	StartedAt       *time.Time
	StoppedAt       *time.Time
}

// FailureReason prefers the container reason, then the job status
// reason, for populating status details on FAILED.
func (d JobDetail) FailureReason() string {
	if d.ContainerReason != "" {
		if d.ExitCode != nil {
			return fmt.Sprintf("%s (exit code %d)", d.ContainerReason, *d.ExitCode)
		}
		return d.ContainerReason
	}
	if d.StatusReason != "" {
		return d.StatusReason
	}
	return "job failed"
}

// Describe fetches current details for up to 100 jobs per call.
func (c *Client) Describe(ctx context.Context, jobIDs []string) (map[string]JobDetail, error) {
	details := make(map[string]JobDetail, len(jobIDs))
	for start := 0; start < len(jobIDs); start += 100 {
		end := start + 100
		if end > len(jobIDs) {
			end = len(jobIDs)
		}
		out, err := c.batch.DescribeJobs(ctx, &batch.DescribeJobsInput{Jobs: jobIDs[start:end]})
		if err != nil {
			return nil, fmt.Errorf("describe jobs: %w", err)
		}
		for _, j := range out.Jobs {
			d := JobDetail{
				JobID:        sdkaws.ToString(j.JobId),
				Status:       string(j.Status),
				StatusReason: sdkaws.ToString(j.StatusReason),
				StartedAt:    millisTime(j.StartedAt),
				StoppedAt:    millisTime(j.StoppedAt),
			}
			if j.Container != nil {
				d.ExitCode = j.Container.ExitCode
				d.ContainerReason = sdkaws.ToString(j.Container.Reason)
			}
			details[d.JobID] = d
		}
	}
	return details, nil
}

func millisTime(ms *int64) *time.Time {
	if ms == nil || *ms == 0 {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
