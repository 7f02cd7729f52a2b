package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/ports"
)

func writeFakeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("writing fake audio: %v", err)
	}
	return path
}

func newTestClient(url string, retries int) *Client {
	return New(Config{
		APIKey:     "test-key",
		BaseURL:    url,
		MaxRetries: retries,
	}, zerolog.Nop())
}

func TestTranscribeSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}
		w.Write([]byte(`{"text":"hello from the meeting"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	tr, err := client.Transcribe(context.Background(), writeFakeAudio(t, 1024))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if tr.Text != "hello from the meeting" {
		t.Fatalf("unexpected transcript %q", tr.Text)
	}
	if tr.CreatedAt.IsZero() {
		t.Fatal("expected timestamp on transcription")
	}
}

func TestTranscribeRejectsOversizedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "big.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating file: %v", err)
	}
	// Sparse file: the size check reads metadata only.
	if err := f.Truncate(maxTranscribeBytes + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	f.Close()

	client := newTestClient("http://127.0.0.1:1", 0)
	if _, err := client.Transcribe(context.Background(), path); !errors.Is(err, ports.ErrFileTooLarge) {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestTranscribeQuotaErrorIsTyped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	if _, err := client.Transcribe(context.Background(), writeFakeAudio(t, 256)); !errors.Is(err, ports.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestRetryOnServerErrorThenSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"a short summary"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2)
	summary, err := client.Summarize(context.Background(), "transcript text")
	if err != nil {
		t.Fatalf("summarize failed: %v", err)
	}
	if summary != "a short summary" {
		t.Fatalf("unexpected summary %q", summary)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	if _, err := client.Summarize(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected single call, got %d", got)
	}
}

func TestAnalyzeParsesStructuredResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":
			"{\"summary\":\"we planned the release\",\"action_items\":[{\"description\":\"cut the branch\",\"assigned_to\":\"Priya\",\"due_date\":\"2026-09-01\",\"status\":\"pending\"},{\"description\":\"update docs\",\"assigned_to\":\"\",\"due_date\":null,\"status\":\"bogus\"}]}"
		}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	analysis, err := client.Analyze(context.Background(), "transcript", "Release planning")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if analysis.Summary != "we planned the release" {
		t.Fatalf("unexpected summary %q", analysis.Summary)
	}
	if len(analysis.ActionItems) != 2 {
		t.Fatalf("expected 2 action items, got %d", len(analysis.ActionItems))
	}

	first := analysis.ActionItems[0]
	if first.AssignedTo != "Priya" || first.DueDate == nil {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if got := first.DueDate.Format("2006-01-02"); got != "2026-09-01" {
		t.Fatalf("unexpected due date %q", got)
	}

	// Unknown statuses coerce to pending at the boundary.
	if analysis.ActionItems[1].Status != "pending" {
		t.Fatalf("expected coerced status, got %q", analysis.ActionItems[1].Status)
	}
}

func TestExtractParticipantsSplitsNames(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"Alice, Bob,  Carol "}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	names, err := client.ExtractParticipants(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	want := []string{"Alice", "Bob", "Carol"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestExtractParticipantsFailureYieldsPlaceholder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"nope"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	names, err := client.ExtractParticipants(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("expected placeholder, got error %v", err)
	}
	if len(names) != 1 || names[0] != "Unknown" {
		t.Fatalf("expected placeholder, got %v", names)
	}
}
