package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/loranexus/loranexus/internal/store"
	"github.com/loranexus/loranexus/internal/view"
)

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	includeIgnored := r.URL.Query().Get("include_ignored") == "true"
	nodes, err := s.store.ListNodes(includeIgnored)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, ok, err := s.store.GetNode(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "node not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleNodePackets(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := intQuery(r, "limit", 100)
	packets, err := s.store.NodePackets(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, packets)
}

func (s *Server) handleNodeNeighbors(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	edges, err := s.store.NeighborsOf(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleNodeTraceroutes(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := intQuery(r, "limit", 50)
	tr, err := s.store.NodeTraceroutes(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleSetIgnored(ignored bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := s.store.SetIgnored(id, ignored); err != nil {
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "not_found", "node not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"is_ignored": ignored})
	}
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	edges, err := s.store.Edges(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleTopologyGraph(w http.ResponseWriter, r *http.Request) {
	edges, err := s.store.Edges(true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	nodeSet := map[string]bool{}
	for _, e := range edges {
		nodeSet[e.Source] = true
		nodeSet[e.Neighbor] = true
	}
	nodes := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		nodes = append(nodes, id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "edges": edges})
}

func (s *Server) handleHopGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := view.HopGraph(s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := view.NetworkStats(s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ex, err := view.Export(s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := view.ExportGeoJSON(s.store)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleTraceroutes(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	tr, err := s.store.Traceroutes(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleTracerouteByID(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid traceroute id")
		return
	}
	tr, ok, err := s.store.TracerouteByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "traceroute not found")
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	hours := intQuery(r, "hours", 24)
	if hours <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "hours must be positive")
		return
	}
	cov, err := view.Coverage(s.store, time.Duration(hours)*time.Hour, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cov)
}

func (s *Server) handleTelemetryAttempts(w http.ResponseWriter, r *http.Request) {
	statusParam := r.URL.Query().Get("status")
	status := store.AttemptStatus(statusParam)
	if statusParam == "" {
		status = store.AttemptPending
	}
	attempts, err := s.store.AttemptsByStatus(store.AttemptTelemetry, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (s *Server) handleSiteConfig(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.store.ListNodes(false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title": s.title, "subtitle": s.subtitle, "node_count": len(nodes),
	})
}

type sendTextRequest struct {
	DestNum uint32 `json:"dest_num"`
	Text    string `json:"text"`
}

// handleSendText forwards a text-message send to the driver. The driver's
// Driver interface has no text-send method of its own (spec.md §6 only
// names traceroute/telemetry probes as emitted); send-text rides the same
// sendRequest channel the Connector's probe sends use, so it is exposed as
// an optional interface the concrete driver may implement.
func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var req sendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "text must not be empty")
		return
	}
	sender, ok := s.driver.(interface {
		SendText(destNum uint32, text string) error
	})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "unsupported", "driver does not support sending text")
		return
	}
	if err := sender.SendText(req.DestNum, req.Text); err != nil {
		writeError(w, http.StatusBadGateway, "send_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
