package chunkpub

import (
	"net/http"

	"go.uber.org/zap"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/internal/api"
	"github.com/symkit/chunkpub/internal/assemble"
	"github.com/symkit/chunkpub/pubtypes"
)

// Client publishes artifacts to an assembly service. It is safe for
// concurrent use; each Publish call negotiates its own session.
type Client struct {
	cfg pubtypes.ClientConfig
	api api.API
	log *zap.Logger
}

// New creates a Client for the given API root and organization. The
// credential provider supplies the Authorization header for every request;
// use pubtypes.StaticToken for a fixed bearer token. Remaining behavior is
// adjusted through options.
func New(baseURL, organization string, creds pubtypes.CredentialProvider, opts ...pubtypes.Option) (*Client, error) {
	if baseURL == "" {
		return nil, puberrors.NewError("new", puberrors.ErrInvalidInput).
			WithMessage("base URL is required")
	}
	if organization == "" {
		return nil, puberrors.NewError("new", puberrors.ErrInvalidInput).
			WithMessage("organization is required")
	}
	if creds == nil {
		return nil, puberrors.NewError("new", puberrors.ErrInvalidInput).
			WithMessage("credential provider is required")
	}

	cfg := pubtypes.ClientConfig{
		BaseURL:      trimTrailingSlash(baseURL),
		Organization: organization,
		Credentials:  creds,
		MaxRounds:    assemble.DefaultMaxRounds,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	} else if cfg.Timeout > 0 && httpClient.Timeout == 0 {
		clone := *httpClient
		clone.Timeout = cfg.Timeout
		httpClient = &clone
	}

	transport := api.NewClient(api.Config{
		BaseURL:              cfg.BaseURL,
		Organization:         cfg.Organization,
		Credentials:          cfg.Credentials,
		HTTPClient:           httpClient,
		UserAgent:            cfg.UserAgent,
		MaxAttempts:          cfg.MaxAttempts,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     cfg.RetryMaxInterval,
		Logger:               cfg.Logger,
	})

	return &Client{cfg: cfg, api: transport, log: cfg.Logger}, nil
}

// trimTrailingSlash normalizes the API root so path joins stay predictable.
func trimTrailingSlash(url string) string {
	for len(url) > 0 && url[len(url)-1] == '/' {
		url = url[:len(url)-1]
	}
	return url
}
