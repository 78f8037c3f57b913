package utils

import (
	"encoding/json"
	"net/http"
)

// WriteJSONResponse writes v to w as JSON with the given status code
func WriteJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
