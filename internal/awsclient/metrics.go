package awsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric is one datapoint to publish. Dimensions are optional.
type Metric struct {
	Name       string
	Value      float64
	Unit       cwtypes.StandardUnit
	Dimensions map[string]string
}

// Metrics publishes datapoints into a single CloudWatch namespace.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Publish sends the given datapoints in one PutMetricData call.
func (m *Metrics) Publish(ctx context.Context, metrics []Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	now := m.nowFunc()
	data := make([]cwtypes.MetricDatum, 0, len(metrics))
	for _, mt := range metrics {
		d := cwtypes.MetricDatum{
			MetricName: awsString(mt.Name),
			Value:      awsFloat64(mt.Value),
			Unit:       mt.Unit,
			Timestamp:  &now,
		}
		for k, v := range mt.Dimensions {
			d.Dimensions = append(d.Dimensions, cwtypes.Dimension{
				Name:  awsString(k),
				Value: awsString(v),
			})
		}
		data = append(data, d)
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.namespace,
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func awsFloat64(f float64) *float64 { return &f }
