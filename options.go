package chunkpub

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/symkit/chunkpub/pubtypes"
)

// WithProject sets the project slug. Required when the server selects the
// per-project debug file variant; unused by the bundle variants.
func WithProject(project string) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.Project = project
	}
}

// WithHTTPClient overrides the transport used for API calls.
func WithHTTPClient(client *http.Client) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.HTTPClient = client
	}
}

// WithTimeout bounds individual HTTP requests.
func WithTimeout(timeout time.Duration) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.UserAgent = ua
	}
}

// WithMaxRounds bounds the number of assemble rounds per publish.
func WithMaxRounds(n int) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.MaxRounds = n
	}
}

// WithMaxAttempts bounds attempts per HTTP call, retries included.
func WithMaxAttempts(n int) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.MaxAttempts = n
	}
}

// WithRetryIntervals sets the initial and maximum backoff delay between
// retries of a failed HTTP call.
func WithRetryIntervals(initial, max time.Duration) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.RetryInitialInterval = initial
		cfg.RetryMaxInterval = max
	}
}

// WithLogger sets the structured logger for engine events.
func WithLogger(log *zap.Logger) pubtypes.Option {
	return func(cfg *pubtypes.ClientConfig) {
		cfg.Logger = log
	}
}

// WithProgressTracker attaches a progress tracker to one Publish call. The
// tracker is updated once per acknowledged chunk batch.
func WithProgressTracker(tracker pubtypes.ProgressTracker) pubtypes.PublishOption {
	return func(cfg *pubtypes.PublishConfig) {
		cfg.ProgressTracker = tracker
	}
}
