// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package admin serves a JSON API for inspecting and changing a set of named throttlers.
//
//	GET    /api/throttlers                  current config
//	POST   /api/throttlers                  replace the config
//	GET    /api/throttlers/{name}           one throttler
//	POST   /api/throttlers/{name}           add a throttler
//	PUT    /api/throttlers/{name}           update a throttler
//	DELETE /api/throttlers/{name}           remove a throttler
//	GET    /api/configs                     config history, oldest first
//	GET    /api/stats/{name}                busiest streams of a throttler
//	GET    /api/stats/{name}/{stream}       counts for one stream
//
// Changes are attributed to the User header. A Version header on a change must match the
// current config version, or the change is refused with 409 Conflict.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/agata-anastazja/throttler/logging"
)

const (
	UserHeader    = "User"
	VersionHeader = "Version"

	anonymousUser = "anonymous"
)

// NewHandler routes the admin API for a.
func NewHandler(a Administrable) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, &httpError{"No such endpoint " + r.URL.Path, http.StatusNotFound})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, &httpError{"Unknown method " + r.Method, http.StatusMethodNotAllowed})
	})

	api := r.PathPrefix("/api").Subrouter()
	api.Use(loadedMiddleware(a), versionMiddleware(a))

	t := &throttlersAPIHandler{a: a}
	api.HandleFunc("/throttlers", t.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/throttlers", t.replaceConfig).Methods(http.MethodPost)
	api.HandleFunc("/throttlers/{name}", t.get).Methods(http.MethodGet)
	api.HandleFunc("/throttlers/{name}", t.add).Methods(http.MethodPost)
	api.HandleFunc("/throttlers/{name}", t.update).Methods(http.MethodPut)
	api.HandleFunc("/throttlers/{name}", t.remove).Methods(http.MethodDelete)

	api.Handle("/configs", &configsAPIHandler{a: a}).Methods(http.MethodGet)

	s := &statsAPIHandler{a: a}
	api.HandleFunc("/stats/{name}", s.top).Methods(http.MethodGet)
	api.HandleFunc("/stats/{name}/{stream}", s.stream).Methods(http.MethodGet)

	return r
}

// loadedMiddleware refuses requests until a config has been loaded.
func loadedMiddleware(a Administrable) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.Configs() == nil {
				writeJSONError(w, &httpError{"Throttlers are not loaded", http.StatusServiceUnavailable})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func versionMiddleware(a Administrable) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := r.Header.Get(VersionHeader)
			if r.Method == http.MethodGet || v == "" {
				next.ServeHTTP(w, r)
				return
			}

			version, err := strconv.Atoi(v)
			if err != nil {
				writeJSONError(w, &httpError{"Invalid version " + v, http.StatusBadRequest})
				return
			}

			if current := a.Configs().Version; version != current {
				writeJSONError(w, &httpError{
					"Version " + v + " is not the current version " + strconv.Itoa(current),
					http.StatusConflict})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getUsername(r *http.Request) string {
	if user := r.Header.Get(UserHeader); user != "" {
		return user
	}

	return anonymousUser
}

// Server serves the admin API over HTTP.
type Server struct {
	server *http.Server
}

func NewServer(addr string, a Administrable) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: NewHandler(a),
		},
	}
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	logging.Infof("Serving admin API on %v", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
