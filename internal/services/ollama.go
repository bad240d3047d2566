package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama streams chat completions from a local Ollama server through its native /api/chat endpoint. The server
// URL and model come with each request, so one instance serves every generation.
type Ollama struct {
	client *http.Client

	logger *slog.Logger
}

// ollamaRecord is one line of the /api/chat stream. Ollama reports failures that happen after the headers were
// sent as a record with only the error field set.
type ollamaRecord struct {
	api.ChatResponse
	Error string `json:"error,omitempty"`
}

// NewOllama creates an Ollama backend. requestTimeout bounds the wait for response headers; zero means
// DefaultRequestTimeout.
func NewOllama(requestTimeout time.Duration, logger *slog.Logger) Ollama {
	return Ollama{
		client: newHTTPClient(requestTimeout),
		logger: logger.With(slog.String("module", "ollama")),
	}
}

// Chat sends prompt as a single user message to req.Model on req.ServerURL and returns an iterator over the
// streamed records. Every record with text, every undecodable record (as a chunk carrying a Warning) and the
// terminal record are yielded in the order received. The iterator yields at most one error, after which it stops:
// *models.ConnectionError, *models.HTTPError or *models.StreamInterruptedError. When ctx is cancelled the iterator
// stops without yielding an error.
func (o Ollama) Chat(ctx context.Context, req models.GenerationRequest, prompt string) iter.Seq2[models.Chunk, error] {
	return func(yield func(models.Chunk, error) bool) {
		endpoint, err := url.JoinPath(req.ServerURL, "api", "chat")
		if err != nil {
			yield(models.Chunk{}, fmt.Errorf("invalid server url %q: %w", req.ServerURL, err))
			return
		}

		t := true
		body := api.ChatRequest{
			Model: req.Model,
			Messages: []api.Message{
				{
					Role:    "user",
					Content: prompt,
				},
			},
			Stream: &t,
		}

		o.logger.Info("Sending request", slog.String("url", endpoint), slog.String("model", req.Model))

		resp, err := postStream(ctx, o.client, o.logger, endpoint, body, "application/x-ndjson", ollamaHTTPError)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(models.Chunk{}, err)
			return
		}
		defer resp.Body.Close()

		r := bufio.NewReader(resp.Body)
		for {
			if ctx.Err() != nil {
				return
			}

			line, readErr := r.ReadBytes('\n')
			if line = bytes.TrimSpace(line); len(line) > 0 {
				chunk, err := decodeOllamaRecord(line)
				if err != nil {
					yield(models.Chunk{}, err)
					return
				}
				if chunk.Text != "" || chunk.Done || chunk.Warning != nil {
					if !yield(chunk, nil) {
						return
					}
				}
				if chunk.Done {
					return
				}
			}

			if readErr != nil {
				if err := streamReadError(ctx, readErr); err != nil {
					yield(models.Chunk{}, err)
				}
				return
			}
		}
	}
}

func decodeOllamaRecord(line []byte) (models.Chunk, error) {
	var rec ollamaRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return models.Chunk{Warning: &models.ParseWarning{Record: string(line), Err: err}}, nil
	}
	if rec.Error != "" {
		return models.Chunk{}, &models.StreamInterruptedError{Err: errors.New(rec.Error)}
	}

	return models.Chunk{
		Text:       rec.Message.Content,
		Done:       rec.Done,
		DoneReason: rec.DoneReason,
	}, nil
}

func ollamaHTTPError(status int, statusText string, body []byte) *models.HTTPError {
	e := &models.HTTPError{
		StatusCode: status,
		Status:     statusText,
	}

	var se api.StatusError
	if err := json.Unmarshal(body, &se); err == nil && se.ErrorMessage != "" {
		e.Message = se.ErrorMessage
		return e
	}
	e.Message = models.Preview(string(body))
	return e
}

// Ping checks that an Ollama server answers at serverURL and returns its version.
func (o Ollama) Ping(ctx context.Context, serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}

	client := api.NewClient(u, o.client)
	if err := client.Heartbeat(ctx); err != nil {
		return "", &models.ConnectionError{URL: serverURL, Err: err}
	}

	version, err := client.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting version: %w", err)
	}

	return version, nil
}
