package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shineum/email-api-lite/internal/apperr"
)

// envelopeVersion is the API contract version reported in every response.
const envelopeVersion = "1.0.0.0"

// Envelope is the uniform JSON wrapper for every response, success or
// failure. IsError and ResponseException are null on success; Result is
// null on failure.
type Envelope struct {
	Version           string  `json:"version"`
	StatusCode        int     `json:"statusCode"`
	Message           string  `json:"message"`
	IsError           *bool   `json:"isError"`
	ResponseException *string `json:"responseException"`
	Result            any     `json:"result"`
}

// successEnvelope wraps a result payload with the given summary message.
func successEnvelope(message string, result any) Envelope {
	return Envelope{
		Version:    envelopeVersion,
		StatusCode: http.StatusOK,
		Message:    message,
		Result:     result,
	}
}

// failureEnvelope converts a classified error into the failure shape.
// Only the sanitized public message reaches the client.
func failureEnvelope(message string, err error) Envelope {
	isError := true
	exception := apperr.Public(err)

	return Envelope{
		Version:           envelopeVersion,
		StatusCode:        apperr.StatusCode(err),
		Message:           message,
		IsError:           &isError,
		ResponseException: &exception,
	}
}

// writeEnvelope serializes the envelope with the HTTP status mirroring
// the statusCode field.
func writeEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
