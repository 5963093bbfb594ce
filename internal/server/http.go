// Package server exposes the HTTP side of the gateway: health,
// Prometheus metrics and a small read-only admin API.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bpermana/kafgate/internal/backend"
	"github.com/bpermana/kafgate/internal/config"
	"github.com/bpermana/kafgate/internal/naming"
)

type HTTPServer struct {
	cfg    *config.Config
	names  naming.Defaults
	admin  backend.TopicAdmin
	plog   backend.PartitionLog
	server *http.Server
}

func NewHTTPServer(cfg *config.Config, admin backend.TopicAdmin, plog backend.PartitionLog) *HTTPServer {
	s := &HTTPServer{
		cfg: cfg,
		names: naming.Defaults{
			Tenant:    cfg.Namespace.Tenant,
			Namespace: cfg.Namespace.Namespace,
		},
		admin: admin,
		plog:  plog,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/topics", s.handleTopics)
	mux.HandleFunc("/api/topics/", s.handleTopic)
	mux.HandleFunc("/api/pending-deletes", s.handlePendingDeletes)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	return s
}

func (s *HTTPServer) ListenAndServe() error {
	return s.server.ListenAndServe()
}

func (s *HTTPServer) Close() error {
	return s.server.Close()
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names, err := s.admin.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Same naming story as the wire surface: callers see client names,
	// and entries that do not translate are not exposed.
	result := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		id, err := naming.Parse(name, s.names)
		if err != nil {
			continue
		}
		detail, err := s.admin.Describe(r.Context(), name)
		if err != nil {
			continue
		}
		result = append(result, map[string]interface{}{
			"name":       id.ClientName(),
			"partitions": detail.Partitions,
			"created_at": detail.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *HTTPServer) handleTopic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/topics/")
	id, err := naming.Parse(name, s.names)
	if err != nil {
		http.Error(w, "Invalid topic name", http.StatusBadRequest)
		return
	}

	detail, err := s.admin.Describe(r.Context(), id.BackendName())
	if err != nil {
		http.Error(w, "Topic not found", http.StatusNotFound)
		return
	}

	partitions := make([]map[string]int64, 0, detail.Partitions)
	for p := int32(0); p < detail.Partitions; p++ {
		ref := backend.Ref{Topic: id.BackendName(), Partition: p}
		latest, _ := s.plog.LatestOffset(r.Context(), ref)
		earliest, _ := s.plog.EarliestOffset(r.Context(), ref)
		partitions = append(partitions, map[string]int64{
			"partition":       int64(p),
			"latest_offset":   latest,
			"earliest_offset": earliest,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"name":       id.ClientName(),
		"created_at": detail.CreatedAt,
		"partitions": partitions,
	})
}

// handlePendingDeletes surfaces topics whose removal has been accepted
// but whose partition data is not yet reclaimed.
func (s *HTTPServer) handlePendingDeletes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pending, err := s.admin.PendingDeletes(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pending == nil {
		pending = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"pending_deletes": pending})
}
