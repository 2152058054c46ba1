package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hugh/orchestra/internal/api/respond"
)

// decodeJSON answers 400 itself when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.Message(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
