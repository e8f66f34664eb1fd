// Package api exposes the exporter over HTTP.
//
// Routes:
//
//	GET <metrics path>    fleet document in the text exposition format
//	GET <telemetry path>  the exporter's own metrics
//	GET /healthz          liveness, never scrapes
//	GET /                 landing page
package api
