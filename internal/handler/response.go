package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"life-auth/internal/service"
	"life-auth/internal/util"
)

// Response is the body of every auth failure.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// MessageResponse is the body of lookup failures.
type MessageResponse struct {
	Message string `json:"message"`
}

func errorResponse(message string) Response {
	return Response{Success: false, Message: message}
}

type responder struct {
	logger *zap.Logger
}

func (h responder) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError maps err to a status and writes body. 5xx errors are
// logged at error level with the cause; the client only sees message.
func (h responder) respondWithError(w http.ResponseWriter, err error, body interface{}) {
	statusCode := getStatusCode(err)
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", statusCode))
	} else {
		h.logger.Debug("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", statusCode))
	}
	h.respondWithJSON(w, statusCode, body)
}

// getStatusCode determines the appropriate HTTP status code for an error
func getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDeliveryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to clients for err.
func publicMessage(err error) string {
	var unauth *service.UnauthorizedError
	switch {
	case errors.As(err, &unauth):
		return unauth.Reason
	case errors.Is(err, service.ErrDeliveryFailed):
		return service.ErrDeliveryFailed.Error()
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid request"
	case errors.Is(err, service.ErrUserNotFound):
		return "user not found"
	default:
		return "internal server error"
	}
}
