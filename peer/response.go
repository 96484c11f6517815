package peer

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Response is the envelope for messages sent by the peer.
//
// Errors carry only Error:
//
//	{"error": "Endpoint not found."}
//
// A created resource carries Message and Data:
//
//	{"message": "Resource created.", "data": {"id": 3, "name": "...", "description": "..."}}
type Response[T any] struct {
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON encodes v as the JSON body of a response with the given status.
//
// Encoding failures are logged, not returned: the header is already on the
// wire by then.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().
			Err(err).
			Int("status_code", statusCode).
			Msg("failed to encode JSON response")
	}
}

// WriteError writes {"error": message} with the given status.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Response[any]{Error: message})
}

// WriteMessage writes {"message": message, "data": data} with the given status.
func WriteMessage[T any](w http.ResponseWriter, statusCode int, message string, data T) {
	WriteJSON(w, statusCode, Response[T]{Message: message, Data: data})
}
