package session

//go:generate mockgen -package=mocks -destination=mocks/mock_session.go github.com/obsidianstack/minecraft-exporter/internal/session Dialer,Session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorcon/rcon"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
	"github.com/obsidianstack/minecraft-exporter/internal/exposition"
)

var (
	// ErrConnectFailed is returned when the RCON endpoint cannot be reached
	// or rejects the password.
	ErrConnectFailed = errors.New("session: connect failed")

	// ErrCommandFailed is returned when the exchange breaks after login.
	ErrCommandFailed = errors.New("session: command failed")
)

// Session is an authenticated RCON connection.
type Session interface {
	Execute(command string) (string, error)
	Close() error
}

// Dialer opens authenticated sessions.
type Dialer interface {
	Dial(ctx context.Context, address, password string) (Session, error)
}

// RCONDialer dials real servers using the Source RCON protocol.
type RCONDialer struct {
	// Timeout bounds the dial and every read/write on the connection.
	Timeout time.Duration
}

// Dial connects and authenticates. The context deadline, if sooner than
// Timeout, is used instead.
func (d RCONDialer) Dial(ctx context.Context, address, password string) (Session, error) {
	timeout := d.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); timeout <= 0 || rem < timeout {
			timeout = rem
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	conn, err := rcon.Dial(address, password, rcon.SetDialTimeout(timeout), rcon.SetDeadline(timeout))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Status is the parsed answer to the player list command.
type Status struct {
	Online uint64
	Max    uint64

	// Players holds the online player names. The text format has no string
	// values, so they are kept for logging only.
	Players []string
}

// Collector queries a server's live player counts over RCON.
type Collector struct {
	dialer  Dialer
	parser  Parser
	command string
}

// NewCollector returns a Collector using real RCON connections and the
// vanilla list reply grammar.
func NewCollector(cfg config.RCONConfig) *Collector {
	return NewCollectorWith(RCONDialer{Timeout: cfg.Timeout}, ListParser{}, cfg.Command)
}

// NewCollectorWith returns a Collector with explicit collaborators.
func NewCollectorWith(d Dialer, p Parser, command string) *Collector {
	return &Collector{dialer: d, parser: p, command: command}
}

// Collect connects to srv, issues the status command and parses the reply.
// The connection is closed early if ctx is cancelled.
func (c *Collector) Collect(ctx context.Context, srv config.Server) (*Status, error) {
	addr := srv.RCONAddress()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, addr, err)
	}

	sess, err := c.dialer.Dial(ctx, addr, srv.Password())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, addr, err)
	}
	defer sess.Close()
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stop()

	reply, err := sess.Execute(c.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %q: %w", ErrCommandFailed, addr, c.command, err)
	}
	slog.Debug("session: reply received", "server", srv.ServerName, "reply", reply)

	st, err := c.parser.Parse(reply)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Families renders st as the online and max player gauges for server.
func Families(server string, st *Status) []exposition.Family {
	online := exposition.Family{
		Name: "minecraft_online_player_count",
		Help: "Number of players currently online.",
		Kind: exposition.Gauge,
	}
	online.Add(float64(st.Online), exposition.Label{Name: "server", Value: server})

	capacity := exposition.Family{
		Name: "minecraft_max_players",
		Help: "Maximum number of players allowed online.",
		Kind: exposition.Gauge,
	}
	capacity.Add(float64(st.Max), exposition.Label{Name: "server", Value: server})

	return []exposition.Family{online, capacity}
}
