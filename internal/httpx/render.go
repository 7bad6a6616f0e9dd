package httpx

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v as the response body with the given status. Encoding
// into the wire happens after the header is sent, so a failure can only be logged.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		cid, _ := GetCorrelationID(r.Context())
		h.Logger.ErrorContext(r.Context(), "render", "domain", "http", "action", "encode", "cid", cid, "error", err)
	}
}
