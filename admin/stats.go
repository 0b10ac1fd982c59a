// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package admin

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agata-anastazja/throttler/stats"
)

type statsAPIHandler struct {
	a Administrable
}

type throttlerStats struct {
	Throttler string               `json:"throttler"`
	Forwarded []*stats.StreamScore `json:"topForwarded"`
	Rejected  []*stats.StreamScore `json:"topRejected"`
}

var errNoStats = &httpError{"No stats listener configured", http.StatusBadRequest}

func (h *statsAPIHandler) top(w http.ResponseWriter, r *http.Request) {
	name, ok := h.throttler(w, r)
	if !ok {
		return
	}

	forwarded := h.a.TopForwarded(name)
	rejected := h.a.TopRejected(name)
	if forwarded == nil || rejected == nil {
		writeJSONError(w, errNoStats)
		return
	}

	writeJSON(w, http.StatusOK, &throttlerStats{name, forwarded, rejected})
}

func (h *statsAPIHandler) stream(w http.ResponseWriter, r *http.Request) {
	name, ok := h.throttler(w, r)
	if !ok {
		return
	}

	stream := mux.Vars(r)["stream"]
	scores := h.a.StreamStats(name, stream)
	if scores == nil {
		writeJSONError(w, errNoStats)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*stats.StreamScores{stream: scores})
}

func (h *statsAPIHandler) throttler(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["name"]
	if _, exists := h.a.Configs().Throttlers[name]; !exists {
		writeJSONError(w, &httpError{"Unable to locate throttler " + name, http.StatusNotFound})
		return "", false
	}

	return name, true
}
