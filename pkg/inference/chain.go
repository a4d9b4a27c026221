package inference

import (
	"context"
	"time"

	"github.com/alessiagatto/documenter-agent/pkg/inference/llmerrors"
	"github.com/alessiagatto/documenter-agent/pkg/logx"
)

// Middleware wraps a Client with additional behaviour.
type Middleware func(next Client) Client

// clientFunc adapts plain functions to the Client interface.
type clientFunc struct {
	describe func(context.Context, VisionRequest) (string, error)
	complete func(context.Context, TextRequest) (string, error)
	model    func() string
}

func (f clientFunc) Describe(ctx context.Context, req VisionRequest) (string, error) {
	return f.describe(ctx, req)
}

func (f clientFunc) Complete(ctx context.Context, req TextRequest) (string, error) {
	return f.complete(ctx, req)
}

func (f clientFunc) ModelName() string {
	return f.model()
}

// WrapClient creates a Client from function implementations. Model name
// lookups are delegated to next.
func WrapClient(
	next Client,
	describe func(context.Context, VisionRequest) (string, error),
	complete func(context.Context, TextRequest) (string, error),
) Client {
	return clientFunc{describe: describe, complete: complete, model: next.ModelName}
}

// Chain composes middlewares around base. Earlier middlewares are outermost:
//
//	Chain(c, mw1, mw2) -> mw1 -> mw2 -> c
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}

// TimeoutMiddleware bounds every request with its own deadline. A request
// cut short by the deadline surfaces as an ErrorTypeTimeout error.
func TimeoutMiddleware(duration time.Duration) Middleware {
	return func(next Client) Client {
		return WrapClient(next,
			func(ctx context.Context, req VisionRequest) (string, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				out, err := next.Describe(timeoutCtx, req)
				return out, timeoutError(timeoutCtx, err)
			},
			func(ctx context.Context, req TextRequest) (string, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				out, err := next.Complete(timeoutCtx, req)
				return out, timeoutError(timeoutCtx, err)
			},
		)
	}
}

func timeoutError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded && !llmerrors.Is(err, llmerrors.ErrorTypeTimeout) {
		return &llmerrors.Error{Type: llmerrors.ErrorTypeTimeout, Err: err}
	}
	return err
}

// LoggingMiddleware logs every failed request and, under the "inference"
// debug domain, every request/response pair with prompts shortened.
func LoggingMiddleware(provider string) Middleware {
	logger := logx.NewLogger("inference")
	return func(next Client) Client {
		return WrapClient(next,
			func(ctx context.Context, req VisionRequest) (string, error) {
				logx.Debug(ctx, "inference", "%s %s/%s prompt=%q image=%d bytes",
					OpDescribe, provider, next.ModelName(), llmerrors.SanitizePrompt(req.Prompt, 400), len(req.Image))
				start := time.Now()
				out, err := next.Describe(ctx, req)
				logResult(ctx, logger, OpDescribe, provider, next.ModelName(), start, out, err)
				return out, err
			},
			func(ctx context.Context, req TextRequest) (string, error) {
				logx.Debug(ctx, "inference", "%s %s/%s prompt=%q",
					OpComplete, provider, next.ModelName(), llmerrors.SanitizePrompt(req.Prompt, 400))
				start := time.Now()
				out, err := next.Complete(ctx, req)
				logResult(ctx, logger, OpComplete, provider, next.ModelName(), start, out, err)
				return out, err
			},
		)
	}
}

func logResult(ctx context.Context, logger *logx.Logger, op, provider, model string, start time.Time, out string, err error) {
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.Warn("%s via %s/%s failed after %s (%s): %v",
			op, provider, model, elapsed, llmerrors.TypeOf(err), err)
		return
	}
	logx.Debug(ctx, "inference", "%s via %s/%s took %s, %d chars", op, provider, model, elapsed, len(out))
}

// Recorder receives one observation per request.
type Recorder interface {
	ObserveRequest(op, model, outcome string, duration time.Duration)
}

// MetricsMiddleware reports request outcomes to r. The outcome label is
// "success" or the llmerrors type name.
func MetricsMiddleware(r Recorder) Middleware {
	return func(next Client) Client {
		return WrapClient(next,
			func(ctx context.Context, req VisionRequest) (string, error) {
				start := time.Now()
				out, err := next.Describe(ctx, req)
				r.ObserveRequest(OpDescribe, next.ModelName(), outcome(err), time.Since(start))
				return out, err
			},
			func(ctx context.Context, req TextRequest) (string, error) {
				start := time.Now()
				out, err := next.Complete(ctx, req)
				r.ObserveRequest(OpComplete, next.ModelName(), outcome(err), time.Since(start))
				return out, err
			},
		)
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return llmerrors.TypeOf(err).String()
}
