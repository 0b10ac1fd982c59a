// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package admin

import (
	"net/http"

	"github.com/agata-anastazja/throttler/config"
)

type configsAPIHandler struct {
	a Administrable
}

type configsResponse struct {
	Configs []*config.ThrottlersConfig `json:"configs"`
}

func (h *configsAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	configs, err := h.a.HistoricalConfigs()
	if err != nil {
		writeJSONError(w, &httpError{"Error reading configs " + err.Error(), http.StatusInternalServerError})
		return
	}

	writeJSON(w, http.StatusOK, &configsResponse{configs})
}
