package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aousabdo/meetingsage/internal/domain"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrQuotaExceeded signals a quota/billing failure from the speech or LLM
// provider. Callers present it differently from generic failures.
var ErrQuotaExceeded = errors.New("provider quota exceeded")

// ErrFileTooLarge rejects audio files over the transcription size limit.
var ErrFileTooLarge = errors.New("audio file exceeds transcription size limit")

// MeetingStore persists meetings and users keyed by opaque identifiers.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, m domain.Meeting) (string, error)
	Meeting(ctx context.Context, id string) (domain.Meeting, error)
	UpdateMeeting(ctx context.Context, id string, upd domain.MeetingUpdate) error
	DeleteMeeting(ctx context.Context, id string) error
	// MeetingsByUser returns the user's meetings sorted newest-first.
	MeetingsByUser(ctx context.Context, userID string) ([]domain.Meeting, error)

	CreateUser(ctx context.Context, u domain.User) (string, error)
	UserByUsername(ctx context.Context, username string) (domain.User, error)
	TouchLogin(ctx context.Context, userID string) error

	Close(ctx context.Context) error
}

// SpeechToText turns a finished audio file into transcript text.
type SpeechToText interface {
	Transcribe(ctx context.Context, path string) (domain.Transcription, error)
}

// TranscriptAnalyzer extracts structure from transcript text.
type TranscriptAnalyzer interface {
	// Analyze returns a summary plus extracted action items.
	Analyze(ctx context.Context, transcript, title string) (domain.Analysis, error)
	// Summarize returns a plain narrative summary.
	Summarize(ctx context.Context, transcript string) (string, error)
	// ExtractParticipants returns participant names. A failed extraction
	// yields a single-element placeholder, never an empty list.
	ExtractParticipants(ctx context.Context, transcript string) ([]string, error)
}

// AudioSink writes finished sample buffers and uploaded files to disk.
type AudioSink interface {
	SaveBuffer(buf domain.SampleBuffer) (domain.SavedAudio, error)
	SaveUpload(name string, data []byte) (domain.SavedAudio, error)
	Duration(path string) float64
	CleanupOld(maxAge time.Duration) int
}

// Resampler converts sample arrays between rates. Used when the capture
// source changes rate mid-session.
type Resampler interface {
	Resample(samples []float32, fromRate, toRate int) ([]float32, error)
}
