// Package results turns the raw object listing of a finished run into
// the summary attached to the simulation record.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
	"github.com/geoschem-cloud/simulation-workflow/internal/simulation"
)

// manifestName is written by the simulation container at the output
// prefix; it carries the authoritative performance numbers.
const manifestName = "manifest.json"

// manifest mirrors the JSON the container writes next to its output.
type manifest struct {
	Timestamp  string `json:"timestamp"`
	RunSummary struct {
		SimulatedDays   float64 `json:"simulated_days"`
		WallTimeSeconds float64 `json:"wall_time_seconds"`
		CoreCount       int     `json:"core_count"`
	} `json:"run_summary"`
}

// Processor builds result summaries from an output location.
type Processor struct {
	s3 awsclient.S3API
}

func NewProcessor(api awsclient.S3API) *Processor {
	return &Processor{s3: api}
}

// Process lists every object under outputLocation, categorizes by
// filename, loads the optional manifest and returns the summary. An
// empty listing yields a zero summary, never an error; a missing
// manifest degrades to a summary without performance data.
func (p *Processor) Process(ctx context.Context, outputLocation string) (*simulation.ResultSummary, error) {
	bucket, prefix, err := ParseS3URI(outputLocation)
	if err != nil {
		return nil, err
	}

	summary := &simulation.ResultSummary{}

	var token *string
	for {
		out, err := p.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list output objects: %w", err)
		}
		for _, obj := range out.Contents {
			categorize(summary, sdkaws.ToString(obj.Key), sdkaws.ToInt64(obj.Size))
		}
		if !sdkaws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	perf, err := p.loadManifest(ctx, bucket, prefix)
	if err != nil {
		// Degraded summary rather than failing the whole operation.
		log.Printf("[results] no usable manifest at %s: %v", outputLocation, err)
	}
	summary.Performance = perf

	return summary, nil
}

func categorize(summary *simulation.ResultSummary, key string, size int64) {
	name := key
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		name = key[i+1:]
	}
	if name == "" || name == manifestName {
		return
	}

	summary.TotalSizeBytes += size

	switch {
	case strings.Contains(key, "Restarts"):
		summary.RestartFiles++
	case strings.HasSuffix(name, ".nc") || strings.HasSuffix(name, ".nc4"):
		summary.OutputFiles++
	case strings.HasSuffix(name, ".log"):
		summary.LogFiles++
	case strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".rc"):
		summary.ConfigFiles++
	}
}

func (p *Processor) loadManifest(ctx context.Context, bucket, prefix string) (*simulation.Performance, error) {
	key := manifestName
	if prefix != "" {
		key = strings.TrimSuffix(prefix, "/") + "/" + manifestName
	}

	out, err := p.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		var apiErr smithy.APIError
		if errors.As(err, &nsk) || (errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey") {
			return nil, errors.New("manifest not present")
		}
		return nil, fmt.Errorf("get manifest: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.RunSummary.WallTimeSeconds == 0 && m.RunSummary.SimulatedDays == 0 {
		return nil, errors.New("manifest has no performance data")
	}

	return &simulation.Performance{
		SimulatedDays:   m.RunSummary.SimulatedDays,
		WallTimeSeconds: m.RunSummary.WallTimeSeconds,
		CoreCount:       m.RunSummary.CoreCount,
	}, nil
}

// ParseS3URI splits "s3://bucket/prefix" into bucket and prefix.
func ParseS3URI(uri string) (bucket, key string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	rest := uri[len(scheme):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], rest[i+1:], nil
	}
	return rest, "", nil
}
