package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing capabilities. A disabled tracer, or
// one called outside an X-Ray segment, runs functions untraced.
type Tracer struct {
	serviceName string
	enabled     bool
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
	}
}

// TraceFunction wraps fn in a subsegment of the current segment
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	if t == nil || !t.enabled || xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, t.serviceName+"."+name)
	err := fn(ctx)
	if err != nil {
		_ = seg.AddError(err)
	}
	seg.Close(err)
	return err
}

// AddAnnotation adds an indexed annotation to the current segment
func (t *Tracer) AddAnnotation(ctx context.Context, key string, value string) {
	if t == nil || !t.enabled {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddAnnotation(key, value)
	}
}

// RecordError records an error in the current segment
func (t *Tracer) RecordError(ctx context.Context, err error) {
	if t == nil || !t.enabled {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		_ = seg.AddError(err)
	}
}
