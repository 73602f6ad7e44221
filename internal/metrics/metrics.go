// Package metrics records the "server started" metric.
//
// The metric lives in the Minecraft namespace, is named "started", counts 1
// per start request and is dimensioned by the caller's email. It is purely
// observational: recording failures are logged by callers and never change
// the response of the start endpoint.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	Namespace      = "Minecraft"
	StartedMetric  = "started"
	EmailDimension = "email"
)

// Sink names accepted by NewRecorder
const (
	SinkEMF        = "emf"
	SinkCloudWatch = "cloudwatch"
	SinkNone       = "none"
)

// Sinks lists every sink name NewRecorder accepts
var Sinks = []string{SinkEMF, SinkCloudWatch, SinkNone}

// Recorder records one server start attributed to identity
type Recorder interface {
	RecordStart(ctx context.Context, identity string) error
}

// CloudWatchAPI is the subset of the CloudWatch client used by CloudWatchRecorder
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// EMFRecorder writes CloudWatch Embedded Metric Format documents, one JSON
// object per line. The log agent of the hosting platform turns them into
// metrics without an API call.
type EMFRecorder struct {
	out io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewEMFRecorder creates a recorder writing to out
func NewEMFRecorder(out io.Writer) *EMFRecorder {
	return &EMFRecorder{out: out, now: time.Now}
}

type emfMetric struct {
	Name string `json:"Name"`
	Unit string `json:"Unit,omitempty"`
}

type emfDirective struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []emfMetric `json:"Metrics"`
}

type emfMetadata struct {
	Timestamp         int64          `json:"Timestamp"` // milliseconds since epoch
	CloudWatchMetrics []emfDirective `json:"CloudWatchMetrics"`
}

// RecordStart writes one EMF line
func (r *EMFRecorder) RecordStart(_ context.Context, identity string) error {
	doc := map[string]interface{}{
		"_aws": emfMetadata{
			Timestamp: r.now().UnixMilli(),
			CloudWatchMetrics: []emfDirective{{
				Namespace:  Namespace,
				Dimensions: [][]string{{EmailDimension}},
				Metrics:    []emfMetric{{Name: StartedMetric, Unit: string(types.StandardUnitCount)}},
			}},
		},
		EmailDimension: identity,
		StartedMetric:  1,
	}

	line, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode metric: %w", err)
	}
	line = append(line, '\n')

	// concurrent requests share the writer; lines must not interleave
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.out.Write(line); err != nil {
		return fmt.Errorf("failed to write metric: %w", err)
	}
	return nil
}

// CloudWatchRecorder publishes the metric with PutMetricData
type CloudWatchRecorder struct {
	client CloudWatchAPI
	now    func() time.Time
}

// NewCloudWatchRecorder creates a recorder publishing through client
func NewCloudWatchRecorder(client CloudWatchAPI) *CloudWatchRecorder {
	return &CloudWatchRecorder{client: client, now: time.Now}
}

// RecordStart publishes one data point
func (r *CloudWatchRecorder) RecordStart(ctx context.Context, identity string) error {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(Namespace),
		MetricData: []types.MetricDatum{{
			MetricName: aws.String(StartedMetric),
			Unit:       types.StandardUnitCount,
			Value:      aws.Float64(1),
			Timestamp:  aws.Time(r.now()),
			Dimensions: []types.Dimension{{
				Name:  aws.String(EmailDimension),
				Value: aws.String(identity),
			}},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to put metric data: %w", err)
	}
	return nil
}

// NewRecorder returns the recorder for one of Sinks
func NewRecorder(sink string, awsCfg aws.Config, out io.Writer) (Recorder, error) {
	switch sink {
	case SinkEMF:
		return NewEMFRecorder(out), nil
	case SinkCloudWatch:
		return NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg)), nil
	case SinkNone:
		return NopRecorder{}, nil
	}
	return nil, fmt.Errorf("unknown metrics sink %q", sink)
}

// NopRecorder drops every metric
type NopRecorder struct{}

// RecordStart does nothing
func (NopRecorder) RecordStart(context.Context, string) error { return nil }
