package models_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status models.Status
		want   bool
	}{
		{models.StatusIdle, false},
		{models.StatusGenerating, false},
		{models.StatusSucceeded, true},
		{models.StatusCancelled, true},
		{models.StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Terminal())
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "invalid input",
			err:  &models.InvalidInputError{Field: "instruction"},
			want: []string{"instruction must not be empty"},
		},
		{
			name: "connection refused",
			err:  &models.ConnectionError{URL: "http://localhost:11434/api/chat", Err: errors.New("connection refused")},
			want: []string{"could not connect", "http://localhost:11434/api/chat", "connection refused"},
		},
		{
			name: "connection timeout",
			err:  &models.ConnectionError{URL: "http://localhost:11434/api/chat", Err: timeoutErr{}},
			want: []string{"timed out"},
		},
		{
			name: "http error with message",
			err:  &models.HTTPError{StatusCode: 404, Status: "404 Not Found", Message: `model "nope" not found`},
			want: []string{"404 Not Found", `model "nope" not found`},
		},
		{
			name: "http error without status text",
			err:  &models.HTTPError{StatusCode: 503},
			want: []string{"503"},
		},
		{
			name: "stream interrupted",
			err:  &models.StreamInterruptedError{Err: context.DeadlineExceeded},
			want: []string{"stream interrupted", "deadline exceeded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, w := range tt.want {
				assert.Contains(t, tt.err.Error(), w)
			}
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	assert.ErrorIs(t, &models.ConnectionError{Err: cause}, cause)
	assert.ErrorIs(t, &models.StreamInterruptedError{Err: cause}, cause)
	assert.ErrorIs(t, &models.ParseWarning{Record: "{", Err: cause}, cause)
}

func TestPreview(t *testing.T) {
	short := "  {\"done\": tru  "
	assert.Equal(t, "{\"done\": tru", models.Preview(short))

	long := strings.Repeat("x", 500)
	p := models.Preview(long)
	assert.True(t, strings.HasSuffix(p, "..."))
	assert.Less(t, len(p), len(long))
}

func TestDraftReplyAndDuration(t *testing.T) {
	start := time.Date(2025, 4, 19, 19, 49, 0, 0, time.UTC)
	d := models.Draft{
		Text:      "  Sure, tomorrow at 10 works.\n",
		StartedAt: start,
		EndedAt:   start.Add(1500 * time.Millisecond),
	}

	assert.Equal(t, "Sure, tomorrow at 10 works.", d.Reply())
	assert.Equal(t, 1500*time.Millisecond, d.Duration())
	assert.Zero(t, models.Draft{StartedAt: start}.Duration())
}
