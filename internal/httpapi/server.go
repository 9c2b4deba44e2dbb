// Package httpapi is the read-oriented HTTP query surface spec.md §6
// enumerates, plus the SUPPLEMENTED FEATURES §13 additions (export, site
// config). Route registration follows main.go's flat mux.HandleFunc block;
// response envelopes follow backend/api/response.go.
package httpapi

import (
	"net/http"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/store"
	"go.uber.org/zap"
)

// Server holds every dependency the HTTP handlers need: the Store for
// queries, the radio Driver for the send-text forward, and site metadata.
type Server struct {
	store  *store.Store
	driver radio.Driver
	logger *zap.Logger

	jwtSecret string
	title     string
	subtitle  string

	sendLimiter func(http.Handler) http.Handler
}

// New builds the flat ServeMux registration, grounded on main.go's
// mux.HandleFunc(...) block.
func New(st *store.Store, driver radio.Driver, logger *zap.Logger, jwtSecret, title, subtitle string, sendRPM int) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store: st, driver: driver, logger: logger,
		jwtSecret: jwtSecret, title: title, subtitle: subtitle,
		sendLimiter: RateLimiter(sendRPM),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/nodes", s.handleListNodes)
	mux.HandleFunc("GET /api/nodes/{id}", s.handleGetNode)
	mux.HandleFunc("GET /api/nodes/{id}/packets", s.handleNodePackets)
	mux.HandleFunc("GET /api/nodes/{id}/neighbors", s.handleNodeNeighbors)
	mux.HandleFunc("GET /api/nodes/{id}/traceroutes", s.handleNodeTraceroutes)

	operatorOnly := RequireOperator(jwtSecret)
	mux.Handle("POST /api/nodes/{id}/ignore", operatorOnly(http.HandlerFunc(s.handleSetIgnored(true))))
	mux.Handle("DELETE /api/nodes/{id}/ignore", operatorOnly(http.HandlerFunc(s.handleSetIgnored(false))))

	mux.HandleFunc("GET /api/topology", s.handleTopology)
	mux.HandleFunc("GET /api/topology/graph", s.handleTopologyGraph)
	mux.HandleFunc("GET /api/hopgraph", s.handleHopGraph)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/export/geojson", s.handleExportGeoJSON)
	mux.HandleFunc("GET /api/traceroutes", s.handleTraceroutes)
	mux.HandleFunc("GET /api/traceroutes/{id}", s.handleTracerouteByID)
	mux.HandleFunc("GET /api/coverage", s.handleCoverage)
	mux.HandleFunc("GET /api/telemetry/attempts", s.handleTelemetryAttempts)
	mux.HandleFunc("GET /api/site-config", s.handleSiteConfig)

	mux.Handle("POST /api/send-text", operatorOnly(s.sendLimiter(http.HandlerFunc(s.handleSendText))))

	return Logging(logger)(mux)
}
