package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
)

func newResolver(t *testing.T, status int, body string) (*HTTPResolver, func() string) {
	t.Helper()
	var gotPath atomic.Value
	gotPath.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(config.LookupConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}), func() string { return gotPath.Load().(string) }
}

func TestResolve_PicksMostRecentName(t *testing.T) {
	r, path := newResolver(t, http.StatusOK, `[
		{"name":"Original"},
		{"name":"Second","changedToAt":1414059749000},
		{"name":"Latest","changedToAt":1500000000000},
		{"name":"Older","changedToAt":1450000000000}
	]`)

	name, err := r.Resolve(context.Background(), "069a79f4-44e9-4726-a5be-fca90e38aaf5")
	require.NoError(t, err)
	assert.Equal(t, "Latest", name)
	assert.Equal(t, "/user/profiles/069a79f444e94726a5befca90e38aaf5/names", path())
}

func TestResolve_SnakeCaseTimestamps(t *testing.T) {
	r, _ := newResolver(t, http.StatusOK, `[{"name":"Old"},{"name":"New","changed_to_at":10}]`)
	name, err := r.Resolve(context.Background(), "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, "New", name)
}

func TestResolve_NonUUIDIdentifierIsEscaped(t *testing.T) {
	r, path := newResolver(t, http.StatusOK, `[{"name":"Steve"}]`)
	_, err := r.Resolve(context.Background(), "odd id")
	require.NoError(t, err)
	assert.Equal(t, "/user/profiles/odd%20id/names", path())
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"empty list", http.StatusOK, `[]`, ErrLookupEmpty},
		{"no content", http.StatusNoContent, ``, ErrLookupEmpty},
		{"not json", http.StatusOK, `<html>`, ErrLookupMalformed},
		{"object instead of list", http.StatusOK, `{"name":"Steve"}`, ErrLookupMalformed},
		{"entry without name", http.StatusOK, `[{"changedToAt":5}]`, ErrLookupMalformed},
		{"server error", http.StatusInternalServerError, `oops`, ErrLookupFailed},
		{"rate limited", http.StatusTooManyRequests, ``, ErrLookupFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newResolver(t, tc.status, tc.body)
			_, err := r.Resolve(context.Background(), "uuid-1")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestResolve_Unreachable(t *testing.T) {
	r := New(config.LookupConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := r.Resolve(context.Background(), "uuid-1")
	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestResolve_SendsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"name":"Steve"}]`))
	}))
	t.Cleanup(srv.Close)

	r := New(config.LookupConfig{BaseURL: srv.URL, UserAgent: "mpe-test/1.0"})
	_, err := r.Resolve(context.Background(), "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, "mpe-test/1.0", ua.Load())
}

func TestResolve_RateLimiterHonoursContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"name":"Steve"}]`))
	}))
	t.Cleanup(srv.Close)

	// One token per hour: the second call must wait and give up with the context.
	r := New(config.LookupConfig{BaseURL: srv.URL, RateLimit: 1.0 / 3600, Burst: 1})
	_, err := r.Resolve(context.Background(), "uuid-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = r.Resolve(ctx, "uuid-2")
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLatest_NoTimestampsReturnsFirst(t *testing.T) {
	name, err := latest([]nameRecord{{Name: "A"}, {Name: "B"}, {Name: "C"}})
	require.NoError(t, err)
	assert.Equal(t, "A", name)
}

func TestLatest_TieKeepsFirstEncountered(t *testing.T) {
	at := int64(100)
	name, err := latest([]nameRecord{{Name: "A"}, {Name: "B", ChangedToAt: &at}, {Name: "C", ChangedToAt: &at}})
	require.NoError(t, err)
	assert.Equal(t, "B", name)
}
