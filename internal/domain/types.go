package domain

import (
	"fmt"
	"strings"
	"time"
)

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateActive     SessionState = "active"
	SessionStateFinalizing SessionState = "finalizing"
	SessionStateDone       SessionState = "done"
	SessionStateAbandoned  SessionState = "abandoned"
)

// AudioFrame is one short unit of captured audio. Frames are transient:
// produced by the capture source and consumed exactly once by the recorder.
type AudioFrame struct {
	Samples    []float32
	SampleRate int
}

// SampleBuffer is an ordered sequence of mono samples at a single rate.
type SampleBuffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b SampleBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// RecorderStats is a periodic observability snapshot of the capture pipeline.
type RecorderStats struct {
	State           SessionState `json:"state"`
	FramesProcessed int          `json:"framesProcessed"`
	QueueDepth      int          `json:"queueDepth"`
	Chunks          int          `json:"chunks"`
	SampleRate      int          `json:"sampleRate"`
	Duration        float64      `json:"recordingDuration"`
}

// SavedAudio describes a recording written to disk. Synthetic is set when the
// capture was degenerate (empty, silent or too short) and a generated tone
// was substituted.
type SavedAudio struct {
	Path      string  `json:"file_path"`
	Duration  float64 `json:"duration"`
	Synthetic bool    `json:"synthetic"`
}

// Transcription is the output of a speech-to-text call.
type Transcription struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Analysis is the structured output of transcript analysis.
type Analysis struct {
	Summary     string       `json:"summary"`
	ActionItems []ActionItem `json:"action_items"`
}

// ActionItemStatus is the three-value status enum for action items.
type ActionItemStatus string

const (
	StatusPending    ActionItemStatus = "pending"
	StatusInProgress ActionItemStatus = "in progress"
	StatusCompleted  ActionItemStatus = "completed"
)

// ParseActionItemStatus validates a status value, rejecting anything outside
// the enum.
func ParseActionItemStatus(s string) (ActionItemStatus, error) {
	switch ActionItemStatus(strings.TrimSpace(strings.ToLower(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("invalid action item status %q", s)
}

// CoerceActionItemStatus maps unknown status values to pending. Used at the
// persistence boundary where stored records may predate validation.
func CoerceActionItemStatus(s string) ActionItemStatus {
	status, err := ParseActionItemStatus(s)
	if err != nil {
		return StatusPending
	}
	return status
}

// ActionItem is a task extracted from or manually added to a meeting.
type ActionItem struct {
	Description string           `json:"description"`
	AssignedTo  string           `json:"assigned_to,omitempty"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	Status      ActionItemStatus `json:"status"`
}

// Meeting is one persisted meeting record.
type Meeting struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	UserID       string       `json:"user_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	AudioFile    string       `json:"audio_file,omitempty"`
	Transcript   string       `json:"transcript,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	ActionItems  []ActionItem `json:"action_items"`
	Participants []string     `json:"participants"`
	Duration     float64      `json:"duration,omitempty"`
}

// MeetingUpdate carries partial meeting fields for an update. Nil fields are
// left untouched.
type MeetingUpdate struct {
	Title        *string       `json:"title,omitempty"`
	Transcript   *string       `json:"transcript,omitempty"`
	Summary      *string       `json:"summary,omitempty"`
	ActionItems  *[]ActionItem `json:"action_items,omitempty"`
	Participants *[]string     `json:"participants,omitempty"`
	Duration     *float64      `json:"duration,omitempty"`
}

// User is an account record. The personal deployment uses a single fixed
// user, but the store keeps the full contract.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}
