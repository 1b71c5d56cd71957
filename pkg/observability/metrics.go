package observability

import (
	"context"
	"time"

	pkgerrors "calctree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// CloudWatchAPI is the subset of the CloudWatch client used for metrics.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics handles application metrics and monitoring. A nil client turns
// every method into a no-op.
type Metrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance
func NewMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordCommand records execution count and latency of a command
func (m *Metrics) RecordCommand(ctx context.Context, name string, duration time.Duration, err error) {
	m.recordExecution(ctx, "Command", name, duration, err)
}

// RecordQuery records execution count and latency of a query
func (m *Metrics) RecordQuery(ctx context.Context, name string, duration time.Duration, err error) {
	m.recordExecution(ctx, "Query", name, duration, err)
}

func (m *Metrics) recordExecution(ctx context.Context, prefix, name string, duration time.Duration, err error) {
	if m.client == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	dims := []types.Dimension{
		{Name: aws.String(prefix + "Name"), Value: aws.String(name)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}
	now := time.Now()

	data := []types.MetricDatum{
		{
			MetricName: aws.String(prefix + "Execution"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String(prefix + "Count"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	}
	if err != nil {
		data = append(data, errorDatum(err, now))
	}
	m.put(ctx, data)
}

// errorDatum counts one failure by its error code
func errorDatum(err error, at time.Time) types.MetricDatum {
	errType, code := "UNKNOWN", "UNKNOWN"
	if domErr := pkgerrors.GetDomainError(err); domErr != nil {
		errType, code = string(domErr.Type), domErr.Code
	} else if appErr := pkgerrors.GetAppError(err); appErr != nil {
		errType, code = string(appErr.Type), appErr.Code
		if code == "" {
			code = errType
		}
	}
	return types.MetricDatum{
		MetricName: aws.String("Errors"),
		Dimensions: []types.Dimension{
			{Name: aws.String("ErrorType"), Value: aws.String(errType)},
			{Name: aws.String("ErrorCode"), Value: aws.String(code)},
		},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(at),
	}
}

// RecordRecalculation records how many descendants one edit rewrote
func (m *Metrics) RecordRecalculation(ctx context.Context, discussionID string, descendants int) {
	if m.client == nil {
		return
	}
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("RecalculatedDescendants"),
			Value:      aws.Float64(float64(descendants)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
	})
	m.logger.Debug("Recalculation recorded",
		zap.String("discussion_id", discussionID),
		zap.Int("descendants", descendants),
	)
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		// Metrics never fail the operation they describe.
		m.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}
