// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package admin

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/agata-anastazja/throttler/config"
)

type throttlersAPIHandler struct {
	a Administrable
}

func (h *throttlersAPIHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.a.Configs())
}

func (h *throttlersAPIHandler) replaceConfig(w http.ResponseWriter, r *http.Request) {
	c := &config.ThrottlersConfig{}
	if err := unmarshalJSON(r.Body, c); err != nil {
		writeJSONError(w, &httpError{err.Error(), http.StatusBadRequest})
		return
	}

	respond(w, h.a.UpdateConfig(c, getUsername(r)))
}

func (h *throttlersAPIHandler) get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	tc, exists := h.a.Configs().Throttlers[name]
	if !exists {
		writeJSONError(w, &httpError{"Unable to locate throttler " + name, http.StatusNotFound})
		return
	}

	writeJSON(w, http.StatusOK, tc)
}

func (h *throttlersAPIHandler) add(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, exists := h.a.Configs().Throttlers[name]; exists {
		writeJSONError(w, &httpError{"Throttler " + name + " already exists", http.StatusConflict})
		return
	}

	h.change(w, r, name)
}

func (h *throttlersAPIHandler) update(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, exists := h.a.Configs().Throttlers[name]; !exists {
		writeJSONError(w, &httpError{"Unable to locate throttler " + name, http.StatusNotFound})
		return
	}

	h.change(w, r, name)
}

func (h *throttlersAPIHandler) change(w http.ResponseWriter, r *http.Request, name string) {
	tc, err := getThrottlerConfig(r)
	if err != nil {
		writeJSONError(w, &httpError{err.Error(), http.StatusBadRequest})
		return
	}

	// The path names the throttler.
	tc.Name = name
	respond(w, h.a.AddThrottler(tc, getUsername(r)))
}

func (h *throttlersAPIHandler) remove(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, exists := h.a.Configs().Throttlers[name]; !exists {
		writeJSONError(w, &httpError{"Unable to locate throttler " + name, http.StatusNotFound})
		return
	}

	respond(w, h.a.RemoveThrottler(name, getUsername(r)))
}

func getThrottlerConfig(r *http.Request) (*config.ThrottlerConfig, error) {
	tc := &config.ThrottlerConfig{}
	if err := unmarshalJSON(r.Body, tc); err != nil {
		return nil, err
	}

	config.ApplyThrottlerDefaults(tc)
	return tc, nil
}

// respond reports the outcome of a change. Invalid configs are the client's fault.
func respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONOk(w)
	case errors.Is(err, config.ErrInvalidConfig):
		writeJSONError(w, &httpError{err.Error(), http.StatusBadRequest})
	default:
		writeJSONError(w, &httpError{err.Error(), http.StatusInternalServerError})
	}
}
