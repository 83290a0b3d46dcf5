package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes v as the response body with the given status code.
// Encoding failures after the header is written can only be logged by the
// caller's middleware; the status line has already gone out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON decodes the request body into v. Unknown fields are ignored;
// the checkout UI sends tracking fields this service does not consume.
func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
