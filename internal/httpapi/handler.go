package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shineum/email-api-lite/internal/apperr"
	"github.com/shineum/email-api-lite/internal/email"
)

// handleSendEmail accepts a send request, runs it through the relay
// pipeline, and answers with the uniform envelope.
func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req email.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeEnvelope(w, failureEnvelope("Failed to send email",
				apperr.New(apperr.KindValidation, "request body too large")))
			return
		}
		writeEnvelope(w, failureEnvelope("Failed to send email",
			apperr.New(apperr.KindValidation, "invalid JSON request body")))
		return
	}

	result, err := s.dispatcher.Send(r.Context(), &req)
	if err != nil {
		// Classified send failures keep the send summary; only truly
		// internal errors report as such.
		message := "Failed to send email"
		if apperr.KindOf(err) == apperr.KindInternal {
			message = "Internal server error"
		}
		writeEnvelope(w, failureEnvelope(message, err))
		return
	}

	writeEnvelope(w, successEnvelope("Email sent successfully", result))
}

// handleRoot reports that the service is up.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, successEnvelope("Email API is running", map[string]string{
		"service": "Email API",
		"version": envelopeVersion,
	}))
}

// handleHealth is the liveness probe endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, successEnvelope("Service is healthy", map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))
}
