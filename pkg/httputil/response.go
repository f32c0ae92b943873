package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/sessionauth/pkg/errors"
	"github.com/utafrali/sessionauth/pkg/logger"
	"github.com/utafrali/sessionauth/pkg/validator"
)

// MessageResponse is the body shape every endpoint uses for status and error replies.
type MessageResponse struct {
	Message   string            `json:"message"`
	Error     string            `json:"error,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteError maps err to a status code and writes {"message": ...}.
// AppErrors use their own status and message. Anything else is a 500 whose message is
// the error text; those are logged with the request-scoped logger when one is present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	status := apperrors.HTTPStatus(err)
	message := err.Error()

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		requestLogger(r, fallback).ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, MessageResponse{Message: message, RequestID: requestID})
}

// WriteServerError writes a 500 carrying a fixed message plus the underlying error text
// in the "error" field.
func WriteServerError(w http.ResponseWriter, r *http.Request, message string, err error, fallback *slog.Logger) {
	requestLogger(r, fallback).ErrorContext(r.Context(), message,
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	WriteJSON(w, http.StatusInternalServerError, MessageResponse{
		Message:   message,
		Error:     err.Error(),
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	})
}

// WriteValidationError writes a 400 for a request body that failed to decode or validate.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, MessageResponse{
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, MessageResponse{Message: "invalid request body", Error: err.Error()})
}

// requestLogger prefers the logger stored by the RequestLogger middleware.
func requestLogger(r *http.Request, fallback *slog.Logger) *slog.Logger {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		return fallback
	}
	return l
}
