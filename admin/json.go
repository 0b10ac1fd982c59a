// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package admin

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/agata-anastazja/throttler/logging"
)

type httpError struct {
	message string
	status  int
}

func writeJSONError(w http.ResponseWriter, err *httpError) {
	response := map[string]string{
		"error":       http.StatusText(err.status),
		"description": err.message}

	logging.Debugf("Response error: %+v", response)
	writeJSON(w, err.status, response)
}

func writeJSONOk(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{})
}

func writeJSON(w http.ResponseWriter, status int, object interface{}) {
	b, err := json.Marshal(object)
	if err != nil {
		logging.Errorf("Error marshalling %T to JSON: %v", object, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		logging.Warnf("Error writing JSON: %v", err)
	}
}

// unmarshalJSON reads object from r. An empty body leaves object untouched.
func unmarshalJSON(r io.Reader, object interface{}) error {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}

	if len(b) == 0 {
		return nil
	}

	return json.Unmarshal(b, object)
}
