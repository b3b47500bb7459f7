package template

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// HTTPSource downloads templates over HTTP(S)
type HTTPSource struct {
	client      *http.Client
	timeout     time.Duration
	maxFileSize int64
}

// NewHTTPSource creates a source with a traced client. A nil client uses
// http.DefaultTransport.
func NewHTTPSource(client *http.Client, timeout time.Duration, maxFileSize int64) *HTTPSource {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPSource{
		client:      client,
		timeout:     timeout,
		maxFileSize: maxFileSize,
	}
}

// Fetch GETs url and returns the body. Non-2xx responses and bodies over
// the size limit are errors.
func (s *HTTPSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeSourceUnavailable, err).WithSource(url)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeSourceUnavailable, err).WithSource(url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable,
			"unexpected status "+resp.Status).WithSource(url)
	}

	if s.maxFileSize > 0 && resp.ContentLength > s.maxFileSize {
		return nil, tooLarge(url, resp.ContentLength, s.maxFileSize)
	}

	body := io.Reader(resp.Body)
	if s.maxFileSize > 0 {
		body = io.LimitReader(resp.Body, s.maxFileSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeSourceUnavailable, err).
			WithContext("failed to read body").WithSource(url)
	}
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return nil, tooLarge(url, int64(len(data)), s.maxFileSize)
	}
	if len(data) == 0 {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "empty response body").WithSource(url)
	}

	return data, nil
}

func tooLarge(url string, size, limit int64) error {
	return pdferrors.NewPDFErrorWithContext(pdferrors.ErrorTypeFileTooLarge,
		fmt.Sprintf("template too large: at least %d bytes", size),
		fmt.Sprintf("max: %d bytes", limit)).WithSource(url)
}
