package mistral

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL    = "https://api.mistral.ai"
	defaultAPIVersion = "v1"
	defaultUserAgent  = "tghamm/mistral_sdk"
	defaultTimeout    = 10 * time.Minute

	// APIKeyEnv is the environment variable read when no key is configured.
	APIKeyEnv = "MISTRAL_API_KEY"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	apiKey         string
	baseURL        string
	apiVersion     string
	userAgent      string
	timeout        time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
	skipSanitizing bool
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		baseURL:    defaultBaseURL,
		apiVersion: defaultAPIVersion,
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (c *clientConfig) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithAPIKey sets the API key. Without it the key is read from
// MISTRAL_API_KEY.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithBaseURL sets the API root, without the version segment.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithAPIVersion sets the version path segment (default "v1").
func WithAPIVersion(version string) Option {
	return func(c *clientConfig) {
		c.apiVersion = version
	}
}

// WithHTTPClient sets the HTTP client used for every call. Its transport
// owns connection pooling; the client's own timeout is left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the timeout of the default HTTP client. It has no effect
// together with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger for request diagnostics. API keys and message
// contents are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithoutSanitization sends chat messages exactly as given instead of
// passing them through SanitizeMessages.
func WithoutSanitization() Option {
	return func(c *clientConfig) {
		c.skipSanitizing = true
	}
}
