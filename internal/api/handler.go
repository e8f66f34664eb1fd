package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/obsidianstack/minecraft-exporter/internal/config"
	"github.com/obsidianstack/minecraft-exporter/internal/exposition"
)

// Scraper writes the fleet's metrics document to w.
type Scraper interface {
	Scrape(ctx context.Context, w io.Writer) error
}

// Paths configures where each endpoint is mounted.
type Paths struct {
	Metrics   string
	Telemetry string
}

// Handler is the HTTP handler for the exporter's endpoints.
type Handler struct {
	scraper Scraper
	paths   Paths
	mux     *http.ServeMux
}

// New creates a Handler serving the fleet document on paths.Metrics and
// telemetry on paths.Telemetry. A nil telemetry handler leaves that path
// unregistered. Paths are expected to have passed config validation; a
// telemetry path equal to another route is not mounted.
func New(s Scraper, paths Paths, telemetry http.Handler) http.Handler {
	h := &Handler{scraper: s, paths: paths, mux: http.NewServeMux()}

	h.mux.HandleFunc(paths.Metrics, h.metrics)
	if paths.Metrics != config.HealthPath {
		h.mux.HandleFunc(config.HealthPath, h.health)
	}
	if paths.Metrics != "/" {
		h.mux.HandleFunc("/", h.landing)
	}
	if telemetry != nil && paths.Telemetry != "" {
		switch paths.Telemetry {
		case "/", paths.Metrics, config.HealthPath:
			slog.Warn("api: telemetry path conflicts with another route, not mounted", "path", paths.Telemetry)
		default:
			h.mux.Handle(paths.Telemetry, telemetry)
		}
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// metrics returns GET <metrics path>: a fresh scrape of every server.
// The document is rendered in full before anything is sent so that a failed
// scrape becomes a 500 rather than a truncated 200.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	if err := h.scraper.Scrape(r.Context(), &buf); err != nil {
		slog.Error("api: scrape failed", "err", err)
		http.Error(w, "scrape failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", exposition.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("api: write response", "err", err)
	}
}

// health returns GET on config.HealthPath. It does not touch any server.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, healthResponse{Status: "ok"})
}

// landing links to the metrics endpoints.
func (h *Handler) landing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, landingPage, html.EscapeString(h.paths.Metrics), html.EscapeString(h.paths.Telemetry))
}

const landingPage = `<html>
<head><title>Minecraft Exporter</title></head>
<body>
<h1>Minecraft Exporter</h1>
<p><a href="%s">Metrics</a></p>
<p><a href="%s">Exporter telemetry</a></p>
</body>
</html>
`

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
