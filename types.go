package ouicomply

import (
	"context"
	"log/slog"
	"time"
)

// Uploader pushes raw document bytes to the remote document service and
// returns the opaque identifier the service assigned.
type Uploader interface {
	Upload(ctx context.Context, data []byte, mediaType string) (string, error)
}

// Invoker performs one structured chat-completion round trip and returns
// the raw function-call arguments produced by the model. The abstraction
// allows mocking, retrying, and caching.
type Invoker interface {
	Complete(ctx context.Context, call ChatCall) ([]byte, error)
}

// ChatCall is one forced function-call request to the remote model.
type ChatCall struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Function     FunctionSchema
	Temperature  float32
	MaxTokens    int
}

// Runner lets the batch coordinator schedule work with any concurrency model.
type Runner interface {
	Go(fn func() error) // schedule
	Wait() error        // join / propagate first err
}

// Options represents functional options for the Analyzer.
type Options struct {
	Model          string        // "" → remote client default
	Timeout        time.Duration // per remote attempt
	Retry          RetryConfig
	Runner         Runner // nil → DefaultRunner
	MaxConcurrency int    // batch fan-out bound
	Temperature    float32
	MaxTokens      int
}

func defaultOptions() Options {
	return Options{
		Timeout:        60 * time.Second,
		Retry:          DefaultRetryConfig(),
		MaxConcurrency: 4,
		Temperature:    0.1,
		MaxTokens:      4000,
	}
}

// Functional option constructors
func WithModel(name string) func(*Options) {
	return func(o *Options) { o.Model = name }
}

func WithTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.Timeout = d }
}

func WithRetry(cfg RetryConfig) func(*Options) {
	return func(o *Options) { o.Retry = cfg }
}

func WithRunner(r Runner) func(*Options) {
	return func(o *Options) { o.Runner = r }
}

func WithMaxConcurrency(n int) func(*Options) {
	return func(o *Options) { o.MaxConcurrency = n }
}

func WithTemperature(t float32) func(*Options) {
	return func(o *Options) { o.Temperature = t }
}

func WithMaxTokens(n int) func(*Options) {
	return func(o *Options) { o.MaxTokens = n }
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
