package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
	"github.com/obsidianstack/minecraft-exporter/internal/exposition"
	"github.com/obsidianstack/minecraft-exporter/internal/lookup"
	"github.com/obsidianstack/minecraft-exporter/internal/telemetry"
)

// Fleet scrapes every configured server and writes one combined document.
type Fleet struct {
	servers []*ServerScraper
	metrics *telemetry.Metrics
}

// NewFleet returns a Fleet for the servers in cfg, in configuration order.
func NewFleet(cfg *config.Config, live LiveCollector, resolver lookup.Resolver, m *telemetry.Metrics) *Fleet {
	f := &Fleet{metrics: m}
	for _, srv := range cfg.Servers {
		f.servers = append(f.servers, NewServerScraper(srv, live, resolver, cfg.ScrapeConcurrency, m))
	}
	return f
}

// Scrape runs each server in order and writes its output to w. A server
// that fails is logged and contributes nothing; the rest are unaffected.
// Only a failing write to w or a cancelled context is returned.
func (f *Fleet) Scrape(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	for _, s := range f.servers {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := s.srv.ServerName

		start := time.Now()
		out := s.Scrape(ctx)
		f.metrics.ScrapeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if out.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			f.serverFailed(name, out.Err)
			continue
		}

		buf.Reset()
		if err := exposition.WriteAll(&buf, out.Families); err != nil {
			f.serverFailed(name, err)
			continue
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("scraper: write %s: %w", name, err)
		}
		slog.Info("scraper: scrape complete",
			"server", name, "families", len(out.Families), "failed_phases", len(out.Failures))
	}
	return nil
}

func (f *Fleet) serverFailed(name string, err error) {
	slog.Error("scraper: server failed", "server", name, "err", err)
	f.metrics.ServerFailures.WithLabelValues(name).Inc()
}
