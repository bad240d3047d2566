package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmaxmax/go-sse"
)

// OpenAI streams chat completions from a local server that speaks the OpenAI chat completions protocol, such as
// LM Studio, llama.cpp's server, vLLM or Ollama's compatibility layer.
type OpenAI struct {
	client *http.Client

	logger *slog.Logger
}

const openAIDoneMarker = "[DONE]"

// NewOpenAI creates an OpenAI-compatible backend. requestTimeout bounds the wait for response headers; zero
// means DefaultRequestTimeout.
func NewOpenAI(requestTimeout time.Duration, logger *slog.Logger) OpenAI {
	return OpenAI{
		client: newHTTPClient(requestTimeout),
		logger: logger.With(slog.String("module", "openai")),
	}
}

// Chat has the same contract as Ollama.Chat. The stream is read as server-sent events and the [DONE] event is
// the terminal record.
func (o OpenAI) Chat(ctx context.Context, req models.GenerationRequest, prompt string) iter.Seq2[models.Chunk, error] {
	return func(yield func(models.Chunk, error) bool) {
		endpoint, err := openAIEndpoint(req.ServerURL)
		if err != nil {
			yield(models.Chunk{}, err)
			return
		}

		body := goopenai.ChatCompletionRequest{
			Model: req.Model,
			Messages: []goopenai.ChatCompletionMessage{
				{
					Role:    goopenai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Stream: true,
		}

		o.logger.Info("Sending request", slog.String("url", endpoint), slog.String("model", req.Model))

		resp, err := postStream(ctx, o.client, o.logger, endpoint, body, "text/event-stream", openAIHTTPError)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(models.Chunk{}, err)
			return
		}
		defer resp.Body.Close()

		finishReason := ""
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if err := streamReadError(ctx, err); err != nil {
					yield(models.Chunk{}, err)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}

			o.logger.Debug("Received event", slog.String("event", ev.Data))

			if strings.TrimSpace(ev.Data) == openAIDoneMarker {
				yield(models.Chunk{Done: true, DoneReason: finishReason}, nil)
				return
			}

			chunk, reason, err := decodeOpenAIEvent(ev.Data)
			if err != nil {
				yield(models.Chunk{}, err)
				return
			}
			if reason != "" {
				finishReason = reason
			}
			if chunk.Text == "" && chunk.Warning == nil {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}

		if err := streamReadError(ctx, io.EOF); err != nil {
			yield(models.Chunk{}, err)
		}
	}
}

func openAIEndpoint(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/v1") {
		return u.JoinPath("chat", "completions").String(), nil
	}
	return u.JoinPath("v1", "chat", "completions").String(), nil
}

func decodeOpenAIEvent(data string) (models.Chunk, string, error) {
	var errRes goopenai.ErrorResponse
	if err := json.Unmarshal([]byte(data), &errRes); err == nil && errRes.Error != nil && errRes.Error.Message != "" {
		return models.Chunk{}, "", &models.StreamInterruptedError{Err: errors.New(errRes.Error.Message)}
	}

	var res goopenai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return models.Chunk{Warning: &models.ParseWarning{Record: data, Err: err}}, "", nil
	}
	if len(res.Choices) == 0 {
		return models.Chunk{}, "", nil
	}

	choice := res.Choices[0]
	return models.Chunk{Text: choice.Delta.Content}, string(choice.FinishReason), nil
}

func openAIHTTPError(status int, statusText string, body []byte) *models.HTTPError {
	e := &models.HTTPError{
		StatusCode: status,
		Status:     statusText,
	}

	var errRes goopenai.ErrorResponse
	if err := json.Unmarshal(body, &errRes); err == nil && errRes.Error != nil && errRes.Error.Message != "" {
		e.Message = errRes.Error.Message
		return e
	}
	e.Message = models.Preview(string(body))
	return e
}

// Ping checks that an OpenAI-compatible server answers at serverURL. These servers report no version, so the
// returned string names the protocol instead.
func (o OpenAI) Ping(ctx context.Context, serverURL string) (string, error) {
	endpoint, err := openAIEndpoint(serverURL)
	if err != nil {
		return "", err
	}
	modelsURL := strings.TrimSuffix(endpoint, "/chat/completions") + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &models.ConnectionError{URL: modelsURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", openAIHTTPError(resp.StatusCode, resp.Status, b)
	}

	return "openai-compatible", nil
}
