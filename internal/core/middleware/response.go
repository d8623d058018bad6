package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError renders the failure envelope the handlers use. Middleware keeps
// its own copy so the handler package can depend on this one.
func writeError(w http.ResponseWriter, code int, message string) {
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"data":   map[string]string{"error": message},
	})
}
