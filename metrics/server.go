// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agata-anastazja/throttler/logging"
)

// Server serves the metrics of a registry over HTTP.
type Server struct {
	server *http.Server
}

// NewServer creates a server for the metrics in g, on addr at path.
func NewServer(addr, path string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	logging.Infof("Serving metrics on %v", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler is the server's handler, for mounting elsewhere or testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
