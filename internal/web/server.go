// Package web serves the operational surface of the service: JSON counters,
// a small HTML dashboard and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mrsinham/pixieveil/internal/storage"
)

// StatsSource is the read-only view of the pipeline counters the server
// renders. The storage manager satisfies it; handlers get no write access.
type StatsSource interface {
	Counters() storage.Snapshot
}

// Server exposes pipeline counters over HTTP.
type Server struct {
	stats   StatsSource
	log     *logrus.Entry
	version string
	srv     *http.Server

	mu sync.Mutex
	ln net.Listener
}

// New wires the routes and the metrics registry. Start must be called to
// begin serving.
func New(ip string, port int, stats StatsSource, version string, log *logrus.Entry) *Server {
	s := &Server{
		stats:   stats,
		log:     log,
		version: version,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(stats))

	r := mux.NewRouter()
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", ip, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("bind http listener: %w", err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.WithField("addr", ln.Addr().String()).Info("http server listening")
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server failed")
		}
	}()
	return nil
}

// Addr reports the bound address. Useful when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting connections and drains in-flight requests until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	if err == nil {
		s.log.Info("http server stopped")
	}
	return err
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats.Counters()); err != nil {
		s.log.WithError(err).Error("failed to encode stats")
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := dashboardData{
		Version: s.version,
		Stats:   s.stats.Counters(),
	}
	if err := dashboardTemplate.Execute(w, data); err != nil {
		s.log.WithError(err).Error("failed to render dashboard")
	}
}
