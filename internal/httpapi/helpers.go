package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

type ErrorResponse struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

func ReplyWithError(w http.ResponseWriter, statusCode int, errMsg string) {
	ReplyJSONResponse(w, statusCode, &ErrorResponse{Message: errMsg})
}

// ReplyWithPDFError maps the error's type onto an HTTP status
func ReplyWithPDFError(w http.ResponseWriter, err error) {
	errType := pdferrors.TypeOf(err)
	ReplyJSONResponse(w, StatusFor(err), &ErrorResponse{
		Message: err.Error(),
		Type:    errType.String(),
	})
}

// StatusFor returns the HTTP status that best describes err
func StatusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	switch pdferrors.TypeOf(err) {
	case pdferrors.ErrorTypeInvalidFieldMap, pdferrors.ErrorTypeInvalidFormData:
		return http.StatusBadRequest
	case pdferrors.ErrorTypeSecurityRestriction:
		return http.StatusForbidden
	case pdferrors.ErrorTypeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case pdferrors.ErrorTypeSourceUnavailable:
		return http.StatusNotFound
	case pdferrors.ErrorTypeMalformedDocument:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func ReplyJSONResponse(w http.ResponseWriter, statusCode int, output interface{}) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(output)
}

func DecodeJSONBody(r *http.Request, placeholder any) error {
	reqBody, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}

	if err := json.Unmarshal(reqBody, placeholder); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}

	return nil
}

func GetSpanFromContext(r *http.Request) trace.Span {
	return trace.SpanFromContext(r.Context())
}
