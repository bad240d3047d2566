package main

import (
	"bytes"
	"context"
	"io"
	"iter"
	"log/slog"
	"testing"

	"github.com/MegaGrindStone/draft-writer/internal/generation"
	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	chunks []models.Chunk
	err    error
}

func (f fakeLLM) Chat(_ context.Context, _ models.GenerationRequest, _ string) iter.Seq2[models.Chunk, error] {
	return func(yield func(models.Chunk, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield(models.Chunk{}, f.err)
		}
	}
}

func runFakeDraft(t *testing.T, llm generation.LLM, message, instruction string) (string, string, error) {
	t.Helper()
	var out, status bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	listener := newTerminalListener(&out, &status)
	generator := generation.NewGenerator(llm, listener, nil, generation.Config{Model: "m", ServerURL: "http://x"}, logger)

	err := runDraft(generator, listener, message, instruction)
	return out.String(), status.String(), err
}

func TestRunDraftSucceeds(t *testing.T) {
	llm := fakeLLM{chunks: []models.Chunk{{Text: "Hello"}, {Text: " there"}, {Done: true}}}

	out, status, err := runFakeDraft(t, llm, "Lunch?", "Say yes")
	require.NoError(t, err)
	assert.Equal(t, "Hello there\n", out)
	assert.Contains(t, status, "Done.")
}

func TestRunDraftFails(t *testing.T) {
	llm := fakeLLM{
		chunks: []models.Chunk{{Text: "Hel"}},
		err:    &models.ConnectionError{URL: "http://x", Err: io.ErrUnexpectedEOF},
	}

	out, status, err := runFakeDraft(t, llm, "Lunch?", "Say yes")
	require.ErrorIs(t, err, errDraftFailed)
	assert.Equal(t, "Hel\n", out)
	assert.Contains(t, status, "Failed: could not connect to http://x")
}

func TestRunDraftInvalidInput(t *testing.T) {
	out, _, err := runFakeDraft(t, fakeLLM{}, "  ", "Say yes")

	var invalid *models.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, out)
}
