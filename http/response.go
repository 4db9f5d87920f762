package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sagarc03/docgate"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	BackendStatus int    `json:"backend_status,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	WriteErrorResponse(w, code, ErrorResponse{Error: errCode, Message: message})
}

// WriteErrorResponse writes resp as the JSON body of an error response.
func WriteErrorResponse(w http.ResponseWriter, code int, resp ErrorResponse) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if err := WriteJSON(w, code, resp); err != nil {
		slog.Error("failed to encode error response", "err", err)
	}
}

// HandleError maps err to a status code and writes a JSON error body.
// Messages are fixed strings; only a backend's own response body is passed
// through, as Detail.
func HandleError(w http.ResponseWriter, err error) {
	code, resp := classify(err)

	if code >= http.StatusInternalServerError {
		slog.Error("request error", "status", code, "error_code", resp.Error, "err", err)
	} else {
		slog.Warn("request error", "status", code, "error_code", resp.Error, "err", err)
	}

	WriteErrorResponse(w, code, resp)
}

func classify(err error) (int, ErrorResponse) {
	var backendErr *docgate.BackendError

	switch {
	case errors.Is(err, docgate.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeUnauthorized, Message: "Missing or invalid bearer token"}

	case errors.Is(err, docgate.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Error: CodeInvalidKey, Message: "Invalid object key"}

	case errors.Is(err, docgate.ErrMisconfigured):
		return http.StatusInternalServerError, ErrorResponse{Error: CodeMisconfigured, Message: "Server is misconfigured"}

	case docgate.IsTimeout(err):
		return http.StatusGatewayTimeout, ErrorResponse{Error: CodeTimeout, Message: "Object storage did not answer in time"}

	// A failed PAR creation carries the backend's answer to POST /p/, which
	// says nothing about the requested object.
	case errors.Is(err, docgate.ErrSecretUnavailable):
		return http.StatusBadGateway, ErrorResponse{Error: CodeTokenUnavailable, Message: "Could not obtain an access token for object storage"}

	case errors.As(err, &backendErr):
		resp := ErrorResponse{
			Error:         CodeBackendError,
			Message:       "Object storage returned an error",
			BackendStatus: backendErr.StatusCode,
			Detail:        strings.TrimSpace(string(backendErr.Body)),
		}
		if backendErr.IsNotFound() {
			resp.Error = CodeNotFound
			resp.Message = "Object not found"
			return http.StatusNotFound, resp
		}
		return http.StatusBadGateway, resp

	case errors.Is(err, docgate.ErrNoCredentialFound), errors.Is(err, docgate.ErrProvider):
		return http.StatusBadGateway, ErrorResponse{Error: CodeCredentialError, Message: "No usable credential to reach object storage"}

	case errors.Is(err, docgate.ErrSigningFailed):
		return http.StatusBadGateway, ErrorResponse{Error: CodeSigningFailed, Message: "Could not sign the request to object storage"}

	case errors.Is(err, docgate.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: CodeNotFound, Message: "Object not found"}

	case errors.Is(err, context.Canceled):
		return http.StatusBadGateway, ErrorResponse{Error: CodeBackendError, Message: "Request cancelled"}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return http.StatusBadGateway, ErrorResponse{Error: CodeBackendUnreachable, Message: "Object storage is unreachable"}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: CodeInternal, Message: "Internal server error"}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
