package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/scanquest/orchestrator/internal/errors"
)

// Error codes for standardized API error responses
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeSessionState      = "SESSION_STATE"
	ErrCodeDeviceCollision   = "DEVICE_ID_COLLISION"
)

// APIError is an error with an HTTP status and a machine-readable code
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

// BadRequest creates a 400 error
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// Unauthorized creates a 401 error
func Unauthorized(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

// NotFound creates a 404 error
func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondCreated writes a 201 Created JSON response
func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, data)
}

// respondError writes an error response
func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*APIError); ok {
		respondJSON(w, apiErr.Status, apiErr)
		return
	}
	respondJSON(w, h.toAPIError(err).Status, h.toAPIError(err))
}

// decodeJSON decodes JSON from the request body into target
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	return nil
}

// toAPIError converts application errors to API errors by kind
func (h *Handlers) toAPIError(err error) *APIError {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		switch appErr.Kind {
		case errors.ErrNotFound:
			return NotFound(appErr.Message)
		case errors.ErrValidation, errors.ErrInvalidInput:
			return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: appErr.Message}
		case errors.ErrConflict:
			return &APIError{Status: http.StatusConflict, Code: ErrCodeConflict, Message: appErr.Message}
		case errors.ErrInvalidTransition:
			return &APIError{Status: http.StatusConflict, Code: ErrCodeInvalidTransition, Message: appErr.Message}
		case errors.ErrSessionState:
			return &APIError{Status: http.StatusConflict, Code: ErrCodeSessionState, Message: appErr.Message}
		case errors.ErrCollision:
			return &APIError{Status: http.StatusConflict, Code: ErrCodeDeviceCollision, Message: appErr.Message}
		}
	}

	h.Log.Error("Internal error", "error", err)
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
}
