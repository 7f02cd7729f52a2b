package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
)

// Processor turns a finished audio file into a stored meeting record:
// transcribe, analyze, extract participants, measure duration, persist.
type Processor struct {
	stt      ports.SpeechToText
	analyzer ports.TranscriptAnalyzer
	store    ports.MeetingStore
	audio    ports.AudioSink
	log      zerolog.Logger
}

func NewProcessor(
	stt ports.SpeechToText,
	analyzer ports.TranscriptAnalyzer,
	store ports.MeetingStore,
	audio ports.AudioSink,
	log zerolog.Logger,
) *Processor {
	return &Processor{
		stt:      stt,
		analyzer: analyzer,
		store:    store,
		audio:    audio,
		log:      log.With().Str("component", "processor").Logger(),
	}
}

// ProcessRecording runs the full meeting pipeline. Quota failures from the
// transcription boundary are passed through typed so callers can present
// them distinctly.
func (p *Processor) ProcessRecording(ctx context.Context, path, title, userID string) (domain.Meeting, error) {
	transcription, err := p.stt.Transcribe(ctx, path)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("transcription: %w", err)
	}
	p.log.Info().Int("chars", len(transcription.Text)).Msg("transcription complete")

	analysis, err := p.analyzer.Analyze(ctx, transcription.Text, title)
	if err != nil {
		p.log.Warn().Err(err).Msg("structured analysis failed, falling back to narrative summary")
		summary, serr := p.analyzer.Summarize(ctx, transcription.Text)
		if serr != nil {
			return domain.Meeting{}, fmt.Errorf("summarization: %w", serr)
		}
		analysis = domain.Analysis{Summary: summary}
	}

	participants, err := p.analyzer.ExtractParticipants(ctx, transcription.Text)
	if err != nil {
		p.log.Warn().Err(err).Msg("participant extraction failed")
		participants = []string{"Unknown"}
	}

	meeting := domain.Meeting{
		Title:        title,
		UserID:       userID,
		AudioFile:    path,
		Transcript:   transcription.Text,
		Summary:      analysis.Summary,
		ActionItems:  analysis.ActionItems,
		Participants: participants,
		Duration:     p.audio.Duration(path),
	}

	id, err := p.store.CreateMeeting(ctx, meeting)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("saving meeting: %w", err)
	}
	p.log.Info().Str("meeting_id", id).Msg("meeting saved")

	stored, err := p.store.Meeting(ctx, id)
	if err != nil {
		meeting.ID = id
		return meeting, nil
	}
	return stored, nil
}
