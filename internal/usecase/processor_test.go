package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
)

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(context.Context, string) (domain.Transcription, error) {
	if f.err != nil {
		return domain.Transcription{}, f.err
	}
	return domain.Transcription{Text: f.text, CreatedAt: time.Now()}, nil
}

type fakeAnalyzer struct {
	analysis        domain.Analysis
	analyzeErr      error
	summary         string
	summarizeErr    error
	participants    []string
	participantsErr error
}

func (f *fakeAnalyzer) Analyze(context.Context, string, string) (domain.Analysis, error) {
	return f.analysis, f.analyzeErr
}

func (f *fakeAnalyzer) Summarize(context.Context, string) (string, error) {
	return f.summary, f.summarizeErr
}

func (f *fakeAnalyzer) ExtractParticipants(context.Context, string) ([]string, error) {
	return f.participants, f.participantsErr
}

type fakeStore struct {
	meetings  map[string]domain.Meeting
	createErr error
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{meetings: map[string]domain.Meeting{}}
}

func (f *fakeStore) CreateMeeting(_ context.Context, m domain.Meeting) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	m.ID = string(rune('a' + f.nextID))
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	f.meetings[m.ID] = m
	return m.ID, nil
}

func (f *fakeStore) Meeting(_ context.Context, id string) (domain.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return domain.Meeting{}, ports.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) UpdateMeeting(context.Context, string, domain.MeetingUpdate) error {
	return nil
}

func (f *fakeStore) DeleteMeeting(context.Context, string) error { return nil }

func (f *fakeStore) MeetingsByUser(context.Context, string) ([]domain.Meeting, error) {
	return nil, nil
}

func (f *fakeStore) CreateUser(context.Context, domain.User) (string, error) { return "", nil }

func (f *fakeStore) UserByUsername(context.Context, string) (domain.User, error) {
	return domain.User{}, ports.ErrNotFound
}

func (f *fakeStore) TouchLogin(context.Context, string) error { return nil }

func (f *fakeStore) Close(context.Context) error { return nil }

type fakeSink struct {
	duration float64
}

func (f *fakeSink) SaveBuffer(domain.SampleBuffer) (domain.SavedAudio, error) {
	return domain.SavedAudio{}, nil
}

func (f *fakeSink) SaveUpload(string, []byte) (domain.SavedAudio, error) {
	return domain.SavedAudio{}, nil
}

func (f *fakeSink) Duration(string) float64 { return f.duration }

func (f *fakeSink) CleanupOld(time.Duration) int { return 0 }

func TestProcessorHappyPath(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	analyzer := &fakeAnalyzer{
		analysis: domain.Analysis{
			Summary: "we decided things",
			ActionItems: []domain.ActionItem{
				{Description: "ship it", AssignedTo: "Dana", Status: domain.StatusPending},
			},
		},
		participants: []string{"Dana", "Lee"},
	}
	p := NewProcessor(&fakeSTT{text: "hello meeting"}, analyzer, store, &fakeSink{duration: 42.5}, zerolog.Nop())

	meeting, err := p.ProcessRecording(context.Background(), "/tmp/a.wav", "Standup", "user-1")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if meeting.ID == "" {
		t.Fatal("expected stored meeting id")
	}
	if meeting.Transcript != "hello meeting" || meeting.Summary != "we decided things" {
		t.Fatalf("unexpected meeting content: %+v", meeting)
	}
	if len(meeting.ActionItems) != 1 || meeting.ActionItems[0].Description != "ship it" {
		t.Fatalf("unexpected action items: %+v", meeting.ActionItems)
	}
	if len(meeting.Participants) != 2 {
		t.Fatalf("unexpected participants: %v", meeting.Participants)
	}
	if meeting.Duration != 42.5 {
		t.Fatalf("unexpected duration: %v", meeting.Duration)
	}
}

func TestProcessorQuotaErrorPassesThroughTyped(t *testing.T) {
	t.Parallel()

	p := NewProcessor(
		&fakeSTT{err: ports.ErrQuotaExceeded},
		&fakeAnalyzer{},
		newFakeStore(),
		&fakeSink{},
		zerolog.Nop(),
	)

	_, err := p.ProcessRecording(context.Background(), "/tmp/a.wav", "Standup", "user-1")
	if !errors.Is(err, ports.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestProcessorFallsBackToNarrativeSummary(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{
		analyzeErr:   errors.New("json mode unavailable"),
		summary:      "plain summary",
		participants: []string{"Sam"},
	}
	store := newFakeStore()
	p := NewProcessor(&fakeSTT{text: "words"}, analyzer, store, &fakeSink{}, zerolog.Nop())

	meeting, err := p.ProcessRecording(context.Background(), "/tmp/a.wav", "Sync", "user-1")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if meeting.Summary != "plain summary" {
		t.Fatalf("expected narrative fallback, got %q", meeting.Summary)
	}
	if len(meeting.ActionItems) != 0 {
		t.Fatalf("expected no action items, got %v", meeting.ActionItems)
	}
}

func TestProcessorSummaryFallbackFailureSurfaces(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{
		analyzeErr:   errors.New("analysis down"),
		summarizeErr: errors.New("summaries down"),
	}
	p := NewProcessor(&fakeSTT{text: "words"}, analyzer, newFakeStore(), &fakeSink{}, zerolog.Nop())

	if _, err := p.ProcessRecording(context.Background(), "/tmp/a.wav", "Sync", "u"); err == nil {
		t.Fatal("expected error when both analysis paths fail")
	}
}

func TestProcessorParticipantFailureUsesPlaceholder(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{
		analysis:        domain.Analysis{Summary: "sum"},
		participantsErr: errors.New("extraction failed"),
	}
	p := NewProcessor(&fakeSTT{text: "words"}, analyzer, newFakeStore(), &fakeSink{}, zerolog.Nop())

	meeting, err := p.ProcessRecording(context.Background(), "/tmp/a.wav", "Sync", "u")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(meeting.Participants) != 1 || meeting.Participants[0] != "Unknown" {
		t.Fatalf("expected placeholder participants, got %v", meeting.Participants)
	}
}

func TestProcessorStoreFailureSurfaces(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createErr = errors.New("store offline")
	p := NewProcessor(&fakeSTT{text: "words"}, &fakeAnalyzer{}, store, &fakeSink{}, zerolog.Nop())

	if _, err := p.ProcessRecording(context.Background(), "/tmp/a.wav", "Sync", "u"); err == nil {
		t.Fatal("expected store error to surface")
	}
}
