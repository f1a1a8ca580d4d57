// Package shared holds the JSON envelope helpers every handler uses.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "attentid/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the standard error envelope.
// Non-coded errors surface as 500 with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":  string(code),
		"detail": dErrors.MessageOf(err),
	})
}
