package lookup

//go:generate mockgen -package=mocks -destination=mocks/mock_resolver.go github.com/obsidianstack/minecraft-exporter/internal/lookup Resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
)

const maxBodyBytes = 1 << 20

var (
	// ErrLookupFailed covers transport errors and non-2xx responses.
	ErrLookupFailed = errors.New("lookup: request failed")

	// ErrLookupEmpty is returned when the name history has no entries.
	ErrLookupEmpty = errors.New("lookup: no names recorded")

	// ErrLookupMalformed is returned when the response body cannot be parsed.
	ErrLookupMalformed = errors.New("lookup: malformed response")
)

// Resolver maps a player identifier to its current display name.
type Resolver interface {
	Resolve(ctx context.Context, id string) (string, error)
}

// nameRecord is one entry of the name-history response. Older mirrors of the
// API spell the timestamp in snake case, so both spellings are accepted.
type nameRecord struct {
	Name             string `json:"name"`
	ChangedToAt      *int64 `json:"changedToAt"`
	ChangedToAtSnake *int64 `json:"changed_to_at"`
}

func (r nameRecord) changedAt() int64 {
	switch {
	case r.ChangedToAt != nil:
		return *r.ChangedToAt
	case r.ChangedToAtSnake != nil:
		return *r.ChangedToAtSnake
	default:
		return 0
	}
}

// HTTPResolver resolves names against a name-history HTTP API. It performs
// one request per call and keeps no cache.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// New returns an HTTPResolver configured from cfg.
func New(cfg config.LookupConfig) *HTTPResolver {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPResolver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  buildHTTPClient(cfg),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Resolve fetches the name history of id and returns the most recent name.
func (r *HTTPResolver) Resolve(ctx context.Context, id string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %s: rate limiter: %w", ErrLookupFailed, id, err)
	}

	endpoint := r.baseURL + "/user/profiles/" + pathID(id) + "/names"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: build request: %w", ErrLookupFailed, id, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLookupFailed, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", fmt.Errorf("%w: %s", ErrLookupEmpty, id)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: unexpected status %d", ErrLookupFailed, id, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %s: read body: %w", ErrLookupFailed, id, err)
	}
	var records []nameRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLookupMalformed, id, err)
	}

	name, err := latest(records)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, id)
	}
	slog.Debug("lookup: resolved player", "id", id, "name", name, "history", len(records))
	return name, nil
}

// latest picks the name with the greatest change timestamp. Entries without a
// timestamp sort as zero; among equal timestamps the first one wins.
func latest(records []nameRecord) (string, error) {
	if len(records) == 0 {
		return "", ErrLookupEmpty
	}
	best := -1
	var bestAt int64
	for i, rec := range records {
		if rec.Name == "" {
			return "", ErrLookupMalformed
		}
		if at := rec.changedAt(); best < 0 || at > bestAt {
			best, bestAt = i, at
		}
	}
	return records[best].Name, nil
}

// pathID returns the identifier as the API expects it in the URL path.
// UUIDs are sent without dashes.
func pathID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return strings.ReplaceAll(u.String(), "-", "")
	}
	return url.PathEscape(id)
}
