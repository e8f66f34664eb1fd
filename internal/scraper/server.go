package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
	"github.com/obsidianstack/minecraft-exporter/internal/disk"
	"github.com/obsidianstack/minecraft-exporter/internal/exposition"
	"github.com/obsidianstack/minecraft-exporter/internal/lookup"
	"github.com/obsidianstack/minecraft-exporter/internal/session"
	"github.com/obsidianstack/minecraft-exporter/internal/stats"
	"github.com/obsidianstack/minecraft-exporter/internal/telemetry"
)

// ServerScraper collects every metric of one configured server.
type ServerScraper struct {
	srv         config.Server
	live        LiveCollector
	resolver    lookup.Resolver
	concurrency int
	metrics     *telemetry.Metrics
}

// NewServerScraper returns a ServerScraper for srv. concurrency bounds the
// number of player records processed at once.
func NewServerScraper(srv config.Server, live LiveCollector, resolver lookup.Resolver, concurrency int, m *telemetry.Metrics) *ServerScraper {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ServerScraper{srv: srv, live: live, resolver: resolver, concurrency: concurrency, metrics: m}
}

// player is one successfully loaded stats record.
type player struct {
	id   string
	name string
	rec  *stats.Record
}

// Scrape runs the directory size, live session and player phases in that
// order. A failing phase is logged and recorded in Outcome.Failures; the
// other phases still run. Only an unlistable stats directory or a cancelled
// context fails the whole server.
func (s *ServerScraper) Scrape(ctx context.Context) *Outcome {
	name := s.srv.ServerName
	out := &Outcome{Server: name}
	slog.Info("scraper: starting scrape", "server", name)

	entries, err := os.ReadDir(s.srv.StatsRoot)
	if err != nil {
		out.Err = fmt.Errorf("%w: %s: %w", ErrStatsUnlistable, s.srv.StatsRoot, err)
		return out
	}

	root := s.srv.InstallRoot
	if root == "" {
		root = disk.InstallRoot(s.srv.StatsRoot)
	}
	if size, err := disk.Size(ctx, root); err != nil {
		s.phaseFailed(out, PhaseDirectory, err)
	} else {
		out.Families = append(out.Families, disk.Family(name, size))
	}

	if st, err := s.live.Collect(ctx, s.srv); err != nil {
		s.phaseFailed(out, PhaseSession, err)
	} else {
		slog.Debug("scraper: players online", "server", name, "players", st.Players)
		out.Families = append(out.Families, session.Families(name, st)...)
	}

	players, err := s.loadPlayers(ctx, entries)
	if err != nil {
		s.phaseFailed(out, PhasePlayers, err)
	} else {
		out.Families = append(out.Families, playerFamilies(name, players)...)
	}

	if err := ctx.Err(); err != nil {
		out.Families = nil
		out.Err = err
	}
	return out
}

func (s *ServerScraper) phaseFailed(out *Outcome, phase string, err error) {
	slog.Warn("scraper: phase failed", "server", s.srv.ServerName, "phase", phase, "err", err)
	s.metrics.PhaseFailures.WithLabelValues(s.srv.ServerName, phase).Inc()
	out.Failures = append(out.Failures, &PhaseError{Phase: phase, Err: err})
}

// loadPlayers reads, decodes and resolves every regular file in the stats
// directory. Records are processed concurrently but the result keeps
// directory order; players that fail are logged and left out.
func (s *ServerScraper) loadPlayers(ctx context.Context, entries []os.DirEntry) ([]*player, error) {
	files := make([]os.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e)
		}
	}

	slots := make([]*player, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, e := range files {
		g.Go(func() error {
			p, err := s.loadPlayer(gctx, e.Name())
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				reason := skipReason(err)
				slog.Warn("scraper: skipping player",
					"server", s.srv.ServerName, "file", e.Name(), "reason", reason, "err", err)
				s.metrics.PlayersSkipped.WithLabelValues(s.srv.ServerName, reason).Inc()
				return nil
			}
			slots[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	players := make([]*player, 0, len(slots))
	for _, p := range slots {
		if p != nil {
			players = append(players, p)
		}
	}
	return players, nil
}

// loadPlayer handles one record file. The record is decoded before the name
// is resolved so that malformed files never cost a network call.
func (s *ServerScraper) loadPlayer(ctx context.Context, file string) (*player, error) {
	id := strings.TrimSuffix(file, filepath.Ext(file))
	if id == "" {
		return nil, fmt.Errorf("%w: %s: no identifier in file name", ErrRecordIO, file)
	}

	data, err := os.ReadFile(filepath.Join(s.srv.StatsRoot, file))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecordIO, err)
	}
	rec, err := stats.Decode(data)
	if err != nil {
		return nil, err
	}
	name, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Debug("scraper: scraping player", "server", s.srv.ServerName, "id", id, "name", name)
	return &player{id: id, name: name, rec: rec}, nil
}

// playerFamilies builds one family per category, in category order, holding
// the samples of every player that has the category.
func playerFamilies(server string, players []*player) []exposition.Family {
	var out []exposition.Family
	for _, info := range stats.Categories {
		fam := exposition.Family{Name: info.Family, Help: info.Help, Kind: info.Kind}
		for _, p := range players {
			counts, ok := p.rec.Counts[info.Category]
			if !ok {
				continue
			}
			for _, key := range p.rec.Keys(info.Category) {
				fam.Add(float64(counts[key]),
					exposition.Label{Name: "server", Value: server},
					exposition.Label{Name: "player", Value: p.name},
					exposition.Label{Name: info.Label, Value: key},
				)
			}
		}
		if len(fam.Samples) > 0 {
			out = append(out, fam)
		}
	}
	return out
}
