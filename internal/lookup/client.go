package lookup

import (
	"net/http"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
)

// userAgentRoundTripper stamps every outgoing request with a fixed User-Agent.
type userAgentRoundTripper struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs the http.Client used for name lookups.
func buildHTTPClient(cfg config.LookupConfig) *http.Client {
	return &http.Client{
		Transport: &userAgentRoundTripper{
			base:      http.DefaultTransport,
			userAgent: cfg.UserAgent,
		},
		Timeout: cfg.Timeout,
	}
}
