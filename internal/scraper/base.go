package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
	"github.com/obsidianstack/minecraft-exporter/internal/exposition"
	"github.com/obsidianstack/minecraft-exporter/internal/lookup"
	"github.com/obsidianstack/minecraft-exporter/internal/session"
	"github.com/obsidianstack/minecraft-exporter/internal/stats"
)

// Phase names, used in logs and as the "phase" telemetry label.
const (
	PhaseDirectory = "directory_size"
	PhaseSession   = "live_session"
	PhasePlayers   = "players"
)

var (
	// ErrRecordIO is returned when a player record file cannot be read.
	ErrRecordIO = errors.New("scraper: record io failed")

	// ErrStatsUnlistable is returned when a server's stats directory cannot
	// be listed. It is terminal for that server.
	ErrStatsUnlistable = errors.New("scraper: stats directory unlistable")
)

// LiveCollector reports the live player counts of a server.
type LiveCollector interface {
	Collect(ctx context.Context, srv config.Server) (*session.Status, error)
}

// PhaseError records a phase that failed without failing the server.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("%s: %v", e.Phase, e.Err) }

func (e *PhaseError) Unwrap() error { return e.Err }

// Outcome is the result of scraping one server. When Err is set the server
// contributes nothing and Families is empty.
type Outcome struct {
	Server   string
	Families []exposition.Family
	Failures []*PhaseError
	Err      error
}

// skipReason classifies a per-player error for the players_skipped counter.
func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrRecordIO):
		return "record_io"
	case errors.Is(err, stats.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, stats.ErrDecodeFailed):
		return "decode_failed"
	case errors.Is(err, lookup.ErrLookupEmpty):
		return "lookup_empty"
	case errors.Is(err, lookup.ErrLookupMalformed):
		return "lookup_malformed"
	case errors.Is(err, lookup.ErrLookupFailed):
		return "lookup_failed"
	default:
		return "other"
	}
}
