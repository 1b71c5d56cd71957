package main

import (
	"context"
	"log"
	"time"

	"calctree/infrastructure/config"
	"calctree/infrastructure/di"
	"calctree/interfaces/invoke"
	"calctree/pkg/common"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
)

// Global variables for Lambda lifecycle management
var (
	container  *di.Container
	dispatcher *invoke.Dispatcher

	// coldStart tracks whether this is a cold start invocation
	coldStart = true
)

// init runs during cold start
func init() {
	coldStartTime := time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The cleanup is never called; the execution environment owns the
	// process lifetime.
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	dispatcher = invoke.NewDispatcher(container.CommandBus, container.QueryBus, container.Logger).
		WithTracer(container.Tracer)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
		zap.String("backend", cfg.StoreBackend),
	)
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req invoke.Request) (common.Response, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok && req.RequestID == "" {
		req.RequestID = lc.AwsRequestID
	}
	ctx = common.EnrichContext(ctx, req.UserID, req.RequestID)

	resp := dispatcher.Dispatch(ctx, req)

	meta := common.ExtractMetadata(ctx)
	container.Logger.Info("Invocation completed",
		zap.String("action", req.Action),
		zap.String("request_id", meta.RequestID),
		zap.String("user_id", meta.UserID),
		zap.Bool("success", resp.Success),
		zap.Bool("cold_start", coldStart),
		zap.Duration("duration", meta.Duration),
	)
	coldStart = false

	return resp, nil
}

func main() {
	lambda.Start(Handler)
}
