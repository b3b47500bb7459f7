package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid field map", pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidFieldMap, "bad"), http.StatusBadRequest},
		{"invalid form data", pdferrors.NewPDFError(pdferrors.ErrorTypeInvalidFormData, "bad"), http.StatusBadRequest},
		{"path escape", pdferrors.NewPDFError(pdferrors.ErrorTypeSecurityRestriction, "no"), http.StatusForbidden},
		{"too large", pdferrors.NewPDFError(pdferrors.ErrorTypeFileTooLarge, "big"), http.StatusRequestEntityTooLarge},
		{"missing template", pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "gone"), http.StatusNotFound},
		{"malformed", pdferrors.NewPDFError(pdferrors.ErrorTypeMalformedDocument, "junk"), http.StatusUnprocessableEntity},
		{"render", pdferrors.NewPDFError(pdferrors.ErrorTypeRender, "boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("load: %w", pdferrors.NewPDFError(pdferrors.ErrorTypeFileTooLarge, "big")), http.StatusRequestEntityTooLarge},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", fmt.Errorf("fill: %w", context.Canceled), http.StatusServiceUnavailable},
		{"body limit", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestReplyWithPDFError(t *testing.T) {
	rec := httptest.NewRecorder()
	ReplyWithPDFError(rec, pdferrors.NewPDFError(pdferrors.ErrorTypeSecurityRestriction, "outside template directory"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SECURITY_RESTRICTION", body.Type)
	assert.Contains(t, body.Message, "outside template directory")
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "root", normalizeEndpoint("/"))
	assert.Equal(t, "/api/v1/fill", normalizeEndpoint("/api/v1/fill"))
	assert.Equal(t, "/mcp", normalizeEndpoint("/mcp/message"))
}
