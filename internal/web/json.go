package web

import (
	"encoding/json"
	"net/http"
)

// SendResult is the JSON response to POST /send.
type SendResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, code int, errMsg string) {
	data, _ := json.Marshal(SendResult{OK: errMsg == "", Error: errMsg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
