package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/tmaxmax/go-sse"
)

type published struct {
	msg    *sse.Message
	topics []string
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(msg *sse.Message, topics ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{msg: msg, topics: topics})
	return p.err
}

func newTestEvents() (*Events, *recordingPublisher) {
	e := NewEvents(slog.New(slog.NewTextHandler(io.Discard, nil)))
	p := &recordingPublisher{}
	e.publisher = p
	return e, p
}

// payload extracts the data of a message as written on the wire.
func payload(t *testing.T, msg *sse.Message) string {
	t.Helper()
	var sb strings.Builder
	if _, err := msg.WriteTo(&sb); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	for _, line := range strings.Split(sb.String(), "\n") {
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			return data
		}
	}
	t.Fatalf("message has no data: %q", sb.String())
	return ""
}

func TestEventsOnFragment(t *testing.T) {
	e, p := newTestEvents()

	e.OnFragment("s1", "Hello")

	if len(p.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(p.msgs))
	}
	if !slices.Equal(p.msgs[0].topics, []string{draftsSSETopic}) {
		t.Errorf("topics = %v, want %v", p.msgs[0].topics, []string{draftsSSETopic})
	}

	var got fragmentEvent
	if err := json.Unmarshal([]byte(payload(t, p.msgs[0].msg)), &got); err != nil {
		t.Fatal(err)
	}
	want := fragmentEvent{SessionID: "s1", Text: "Hello"}
	if got != want {
		t.Errorf("fragment = %+v, want %+v", got, want)
	}
}

func TestEventsOnStatusChange(t *testing.T) {
	tests := []struct {
		name   string
		status models.Status
		detail string
	}{
		{name: "Generating", status: models.StatusGenerating},
		{name: "Failed", status: models.StatusFailed, detail: "server responded with 404 Not Found: model not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, p := newTestEvents()

			e.OnStatusChange("s1", tt.status, tt.detail)

			if len(p.msgs) != 1 {
				t.Fatalf("published %d messages, want 1", len(p.msgs))
			}
			var got statusEvent
			if err := json.Unmarshal([]byte(payload(t, p.msgs[0].msg)), &got); err != nil {
				t.Fatal(err)
			}
			want := statusEvent{SessionID: "s1", Status: tt.status, Detail: tt.detail}
			if got != want {
				t.Errorf("status = %+v, want %+v", got, want)
			}
		})
	}
}

func TestEventsFragmentWithNewlines(t *testing.T) {
	e, p := newTestEvents()

	e.OnFragment("s1", "Hi,\n\nSure.")

	var got fragmentEvent
	if err := json.Unmarshal([]byte(payload(t, p.msgs[0].msg)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "Hi,\n\nSure." {
		t.Errorf("text = %q, want %q", got.Text, "Hi,\n\nSure.")
	}
}

func TestEventsPublishErrorIsSwallowed(t *testing.T) {
	e, p := newTestEvents()
	p.err = errors.New("provider closed")

	e.OnFragment("s1", "Hello")
	e.OnStatusChange("s1", models.StatusSucceeded, "")

	if len(p.msgs) != 2 {
		t.Errorf("published %d messages, want 2", len(p.msgs))
	}
}
