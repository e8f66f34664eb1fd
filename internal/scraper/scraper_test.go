package scraper_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
	"github.com/obsidianstack/minecraft-exporter/internal/lookup"
	lookupmocks "github.com/obsidianstack/minecraft-exporter/internal/lookup/mocks"
	"github.com/obsidianstack/minecraft-exporter/internal/scraper"
	"github.com/obsidianstack/minecraft-exporter/internal/session"
	sessionmocks "github.com/obsidianstack/minecraft-exporter/internal/session/mocks"
	"github.com/obsidianstack/minecraft-exporter/internal/telemetry"
)

type fakeLive struct {
	st  *session.Status
	err error
}

func (f fakeLive) Collect(context.Context, config.Server) (*session.Status, error) {
	return f.st, f.err
}

var online = fakeLive{st: &session.Status{Online: 1, Max: 20, Players: []string{"Steve"}}}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// newServer lays out <tmp>/<name>/world/stats with the given record files.
func newServer(t *testing.T, name string, records map[string]string) config.Server {
	t.Helper()
	statsRoot := filepath.Join(t.TempDir(), name, "world", "stats")
	require.NoError(t, os.MkdirAll(statsRoot, 0o755))
	for file, body := range records {
		require.NoError(t, os.WriteFile(filepath.Join(statsRoot, file), []byte(body), 0o644))
	}
	return config.Server{
		ServerName: name,
		StatsRoot:  statsRoot,
		ServerIP:   "127.0.0.1",
		RCONPort:   25575,
	}
}

func scrape(t *testing.T, f *scraper.Fleet) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, f.Scrape(context.Background(), &buf))
	return buf.String()
}

func fleetConfig(servers ...config.Server) *config.Config {
	cfg := config.Default()
	cfg.Servers = servers
	return cfg
}

func TestFleet_EndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := sessionmocks.NewMockDialer(ctrl)
	sess := sessionmocks.NewMockSession(ctrl)
	resolver := lookupmocks.NewMockResolver(ctrl)

	alpha := newServer(t, "alpha", map[string]string{
		"uuid-1.json": `{"stats":{"minecraft:mined":{"stone":5}}}`,
	})
	alpha.RCONPassword = "hunter2"

	dialer.EXPECT().Dial(gomock.Any(), "127.0.0.1:25575", "hunter2").Return(sess, nil)
	sess.EXPECT().Execute("list").Return("There are 1 of a max of 20 players online: Steve", nil)
	sess.EXPECT().Close().Return(nil).MinTimes(1)
	resolver.EXPECT().Resolve(gomock.Any(), "uuid-1").Return("Steve", nil)

	live := session.NewCollectorWith(dialer, session.ListParser{}, "list")
	f := scraper.NewFleet(fleetConfig(alpha), live, resolver, telemetry.New())
	out := scrape(t, f)

	assert.Contains(t, out, `minecraft_directory_size{server="alpha"} `)
	assert.Contains(t, out, `minecraft_online_player_count{server="alpha"} 1`+"\n")
	assert.Contains(t, out, `minecraft_max_players{server="alpha"} 20`+"\n")
	assert.Contains(t, out, `minecraft_blocks_mined{server="alpha",player="Steve",block="stone"} 5`+"\n")
	assert.Contains(t, out, "# TYPE minecraft_blocks_mined counter\n")
	assert.NotContains(t, out, "minecraft_items_crafted")
}

func TestFleet_FailedServerIsIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := lookupmocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "uuid-2").Return("Alex", nil)

	alpha := newServer(t, "alpha", nil)
	require.NoError(t, os.RemoveAll(filepath.Dir(filepath.Dir(alpha.StatsRoot))))
	beta := newServer(t, "beta", map[string]string{
		"uuid-2.json": `{"stats":{"minecraft:crafted":{"minecraft:torch":12}}}`,
	})

	m := telemetry.New()
	f := scraper.NewFleet(fleetConfig(alpha, beta), online, resolver, m)
	out := scrape(t, f)

	assert.NotContains(t, out, `server="alpha"`)
	assert.Contains(t, out, `minecraft_items_crafted{server="beta",player="Alex",item="minecraft:torch"} 12`)
	assert.Contains(t, out, `minecraft_online_player_count{server="beta"} 1`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServerFailures.WithLabelValues("alpha")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ServerFailures.WithLabelValues("beta")))
}

func TestFleet_HeadersRepeatPerServer(t *testing.T) {
	alpha := newServer(t, "alpha", nil)
	beta := newServer(t, "beta", nil)

	f := scraper.NewFleet(fleetConfig(alpha, beta), online, lookupmocks.NewMockResolver(gomock.NewController(t)), telemetry.New())
	out := scrape(t, f)

	assert.Equal(t, 2, strings.Count(out, "# TYPE minecraft_max_players gauge\n"))
	assert.Less(t, strings.Index(out, `server="alpha"`), strings.Index(out, `server="beta"`))
}

func TestFleet_NoServers(t *testing.T) {
	f := scraper.NewFleet(fleetConfig(), online, nil, telemetry.New())
	assert.Empty(t, scrape(t, f))
}

func TestFleet_WriteFailureIsFatal(t *testing.T) {
	alpha := newServer(t, "alpha", nil)
	f := scraper.NewFleet(fleetConfig(alpha), online, nil, telemetry.New())

	err := f.Scrape(context.Background(), failWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestFleet_CancelledContext(t *testing.T) {
	alpha := newServer(t, "alpha", nil)
	f := scraper.NewFleet(fleetConfig(alpha), online, nil, telemetry.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	err := f.Scrape(ctx, &buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

func TestServerScraper_BadPlayerIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := lookupmocks.NewMockResolver(ctrl)
	// The malformed record must never reach the resolver.
	resolver.EXPECT().Resolve(gomock.Any(), "good").Return("Steve", nil)

	srv := newServer(t, "alpha", map[string]string{
		"bad.json":  `{"stats":`,
		"good.json": `{"stats":{"minecraft:mined":{"minecraft:stone":5}}}`,
	})
	m := telemetry.New()
	out := scraper.NewServerScraper(srv, online, resolver, 2, m).Scrape(context.Background())

	require.NoError(t, out.Err)
	assert.Empty(t, out.Failures)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlayersSkipped.WithLabelValues("alpha", "decode_failed")))

	require.NotEmpty(t, out.Families)
	for _, fam := range out.Families {
		if fam.Name == "minecraft_blocks_mined" {
			require.Len(t, fam.Samples, 1)
			assert.Equal(t, 5.0, fam.Samples[0].Value)
			assert.Equal(t, "Steve", fam.Samples[0].Labels[1].Value)
		}
	}
}

func TestServerScraper_SkipReasons(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := lookupmocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "gone").Return("", lookup.ErrLookupEmpty)
	resolver.EXPECT().Resolve(gomock.Any(), "down").Return("", lookup.ErrLookupFailed)

	srv := newServer(t, "alpha", map[string]string{
		"gone.json":    `{"stats":{}}`,
		"down.json":    `{"stats":{}}`,
		"nostats.json": `{"DataVersion":3465}`,
	})
	m := telemetry.New()
	out := scraper.NewServerScraper(srv, online, resolver, 4, m).Scrape(context.Background())

	require.NoError(t, out.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlayersSkipped.WithLabelValues("alpha", "lookup_empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlayersSkipped.WithLabelValues("alpha", "lookup_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlayersSkipped.WithLabelValues("alpha", "schema_mismatch")))
}

func TestServerScraper_SamplesMatchKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := lookupmocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "a").Return("Alex", nil)
	resolver.EXPECT().Resolve(gomock.Any(), "b").Return("Steve", nil)

	srv := newServer(t, "alpha", map[string]string{
		"a.json": `{"stats":{"minecraft:mined":{"minecraft:dirt":3,"minecraft:stone":5},"minecraft:custom":{"minecraft:jump":7}}}`,
		"b.json": `{"stats":{"minecraft:mined":{"minecraft:sand":1}}}`,
	})
	require.NoError(t, os.Mkdir(filepath.Join(srv.StatsRoot, "backup"), 0o755))

	f := scraper.NewFleet(fleetConfig(srv), online, resolver, telemetry.New())
	out := scrape(t, f)

	assert.Equal(t, 3, strings.Count(out, "\nminecraft_blocks_mined{"))
	assert.Equal(t, 1, strings.Count(out, "\nminecraft_custom{"))
	assert.Contains(t, out, "# TYPE minecraft_custom gauge\n")

	// Players in directory order, keys sorted within a player.
	dirt := strings.Index(out, `player="Alex",block="minecraft:dirt"`)
	stone := strings.Index(out, `player="Alex",block="minecraft:stone"`)
	sand := strings.Index(out, `player="Steve",block="minecraft:sand"`)
	assert.True(t, dirt < stone && stone < sand, "unexpected order:\n%s", out)
}

func TestServerScraper_PhasesAreIndependent(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := lookupmocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), "uuid-1").Return("Steve", nil)

	srv := newServer(t, "alpha", map[string]string{
		"uuid-1.json": `{"stats":{"minecraft:killed":{"minecraft:zombie":2}}}`,
	})
	srv.InstallRoot = filepath.Join(t.TempDir(), "missing")

	m := telemetry.New()
	down := fakeLive{err: session.ErrConnectFailed}
	out := scraper.NewServerScraper(srv, down, resolver, 1, m).Scrape(context.Background())

	require.NoError(t, out.Err)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, scraper.PhaseDirectory, out.Failures[0].Phase)
	assert.Equal(t, scraper.PhaseSession, out.Failures[1].Phase)
	assert.ErrorIs(t, out.Failures[1], session.ErrConnectFailed)

	require.Len(t, out.Families, 1)
	assert.Equal(t, "minecraft_entities_killed", out.Families[0].Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseFailures.WithLabelValues("alpha", scraper.PhaseSession)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseFailures.WithLabelValues("alpha", scraper.PhaseDirectory)))
}

func TestServerScraper_UnlistableStats(t *testing.T) {
	srv := config.Server{ServerName: "alpha", StatsRoot: filepath.Join(t.TempDir(), "nope")}
	out := scraper.NewServerScraper(srv, online, nil, 1, telemetry.New()).Scrape(context.Background())

	assert.ErrorIs(t, out.Err, scraper.ErrStatsUnlistable)
	assert.Empty(t, out.Families)
}
