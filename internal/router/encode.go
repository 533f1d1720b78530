package router

import (
	"encoding/json"
	"net/http"
)

type metricBody struct {
	Metric any `json:"metric"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeSuccess(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

// writeFailure sends the error's own JSON form when it has one. Other errors
// are sent as {"error": "<message>"}.
func writeFailure(w http.ResponseWriter, err error) {
	if _, ok := err.(json.Marshaler); ok {
		writeJSON(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

// writeJSON writes strings verbatim and everything else as JSON.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var body []byte
	switch t := v.(type) {
	case string:
		body = []byte(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			status = http.StatusInternalServerError
			b, _ = json.Marshal(errorBody{Error: "error encoding response: " + err.Error()})
		}
		body = b
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
