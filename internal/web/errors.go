package web

// errors.go provides unified error response handling for the API.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the error type
//  4. The user-facing message comes from core.MapError
//  5. Technical error + context is logged with the request ID for correlation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Phase   string `json:"phase,omitempty"`
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	var (
		schemaErr *core.SchemaError
		storeErr  *core.StoreUnavailableError
	)
	switch {
	case errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrPalletNotFound):
		return http.StatusNotFound
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error and writes the user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)
	phase := string(core.FailedPhase(err))

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"phase", phase,
		"request_id", middleware.GetReqID(r.Context()),
	)

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
		Phase:   phase,
	}
	// Schema and state errors name the file, column or pallet to fix.
	if exposeDetail(err) {
		resp.Error = err.Error()
	}

	if status == http.StatusConflict {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, r, status, resp)
}

func exposeDetail(err error) bool {
	var (
		schemaErr  *core.SchemaError
		corruptErr *core.CorruptStateError
	)
	return errors.As(err, &schemaErr) || errors.As(err, &corruptErr)
}

// respondBadRequest writes a 400 for malformed request parameters.
func respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    "REQ001",
	})
}
