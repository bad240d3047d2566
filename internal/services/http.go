package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
)

// DefaultRequestTimeout bounds how long a backend waits for response headers, which includes the time the server
// needs to load the model.
const DefaultRequestTimeout = 60 * time.Second

const maxErrorBodySize = 64 * 1024

// newHTTPClient returns a client whose only deadline is on response headers. Streaming bodies are read without a
// deadline so long replies are not cut off.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &http.Client{Transport: transport}
}

// postStream sends body as JSON to endpoint and returns the open response. Transport failures are reported as
// *models.ConnectionError and non-2xx responses as the error built by httpErr. A cancelled context is returned
// unchanged so callers can stay silent about it.
func postStream(
	ctx context.Context,
	client *http.Client,
	logger *slog.Logger,
	endpoint string,
	body any,
	accept string,
	httpErr func(status int, statusText string, body []byte) *models.HTTPError,
) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	logger.Debug("Request body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, &models.ConnectionError{URL: endpoint, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, httpErr(resp.StatusCode, resp.Status, b)
	}

	return resp, nil
}

// streamReadError classifies an error met while reading an open stream. It returns nil when the read failed
// because ctx was cancelled.
func streamReadError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &models.StreamInterruptedError{Err: err}
}
