package usecase

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
)

var ErrNoActiveSession = errors.New("no active recording session")

var ErrRecordingActive = errors.New("a recording session is already running")

// Config controls capture pipeline behavior.
type Config struct {
	BatchSize        int
	ConsolidateAfter int
	IdleSleep        time.Duration
	StatsInterval    time.Duration
	StopTimeout      time.Duration
}

// Recorder owns the recording session state machine and the batch consumer
// that drains the frame queue. At most one session is live at a time.
type Recorder struct {
	cfg       Config
	resampler ports.Resampler
	log       zerolog.Logger

	mu      sync.Mutex
	current *recordingSession
}

func NewRecorder(cfg Config, resampler ports.Resampler, log zerolog.Logger) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.ConsolidateAfter <= 0 {
		cfg.ConsolidateAfter = 50
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = 10 * time.Millisecond
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &Recorder{
		cfg:       cfg,
		resampler: resampler,
		log:       log.With().Str("component", "recorder").Logger(),
	}
}

// Start begins a new session and spawns its consumer. A consumer from a
// previous session must have exited before a new one may be spawned.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		select {
		case <-r.current.done:
		default:
			return ErrRecordingActive
		}
	}

	session := newRecordingSession()
	r.current = session
	go r.consume(session)

	r.log.Info().Msg("started recording session")
	return nil
}

// PushFrame enqueues a captured frame. It never blocks; frames arriving while
// no session is active are dropped and false is returned.
func (r *Recorder) PushFrame(frame domain.AudioFrame) bool {
	r.mu.Lock()
	session := r.current
	r.mu.Unlock()

	if session == nil || session.getState() != domain.SessionStateActive {
		return false
	}
	session.queue.Push(frame)
	return true
}

// Stop finalizes the active session and returns the consolidated buffer. It
// waits for the consumer to drain the queue, bounded by StopTimeout; on
// timeout the partially accumulated buffer is returned as a best-effort
// result. A session that captured nothing yields a nil buffer.
func (r *Recorder) Stop() (*domain.SampleBuffer, error) {
	r.mu.Lock()
	session := r.current
	r.mu.Unlock()

	if session == nil || session.getState() != domain.SessionStateActive {
		return nil, ErrNoActiveSession
	}

	session.setState(domain.SessionStateFinalizing)

	select {
	case <-session.done:
	case <-time.After(r.cfg.StopTimeout):
		r.log.Warn().Dur("timeout", r.cfg.StopTimeout).
			Msg("consumer did not finish before stop timeout, using partial buffer")
	}

	chunks, rate, frames := session.snapshotBuffer()
	if len(chunks) == 0 {
		session.setState(domain.SessionStateAbandoned)
		r.log.Warn().Int("frames", frames).Msg("no audio captured in session")
		return nil, nil
	}

	samples := finalizeChunks(chunks, concatChunks, r.log)
	session.setState(domain.SessionStateDone)

	buf := &domain.SampleBuffer{Samples: samples, SampleRate: rate}
	r.log.Info().
		Int("frames", frames).
		Int("samples", len(samples)).
		Float64("duration", buf.Duration()).
		Msg("recording complete")
	return buf, nil
}

// Stats returns the latest observability snapshot for the current session.
func (r *Recorder) Stats() domain.RecorderStats {
	r.mu.Lock()
	session := r.current
	r.mu.Unlock()

	if session == nil {
		return domain.RecorderStats{State: domain.SessionStateIdle}
	}
	stats := session.statsSnapshot()
	stats.State = session.getState()
	stats.QueueDepth = session.queue.Len()
	return stats
}

// consume drains the frame queue in bounded batches until the session leaves
// the active state and the queue is empty. Per-batch failures are logged and
// skipped; a dropped batch is preferable to aborting the recording.
func (r *Recorder) consume(session *recordingSession) {
	defer close(session.done)

	var transient [][]float32
	lastStats := time.Now()

	for session.getState() == domain.SessionStateActive || session.queue.Len() > 0 {
		frames := session.queue.PopBatch(r.cfg.BatchSize)
		if len(frames) == 0 {
			time.Sleep(r.cfg.IdleSleep)
			continue
		}

		for _, frame := range frames {
			samples, err := r.adoptFrame(session, frame)
			if err != nil {
				r.log.Error().Err(err).Msg("dropping audio frame")
				continue
			}
			if len(samples) == 0 {
				continue
			}
			transient = append(transient, samples)
		}
		session.addFrames(len(frames))

		if now := time.Now(); now.Sub(lastStats) >= r.cfg.StatsInterval {
			session.refreshStats(len(transient))
			lastStats = now
		}

		if len(transient) > r.cfg.ConsolidateAfter {
			combined, err := concatChunks(transient)
			if err != nil {
				r.log.Error().Err(err).Msg("chunk consolidation failed")
				continue
			}
			session.appendChunk(combined)
			transient = nil
		}
	}

	if len(transient) > 0 {
		combined, err := concatChunks(transient)
		if err != nil {
			r.log.Error().Err(err).Msg("final chunk consolidation failed")
		} else {
			session.appendChunk(combined)
		}
	}
	session.refreshStats(0)
}

// adoptFrame normalizes one frame to the session sample rate. The first frame
// fixes the rate; later frames at a different rate are resampled.
func (r *Recorder) adoptFrame(session *recordingSession, frame domain.AudioFrame) ([]float32, error) {
	if len(frame.Samples) == 0 {
		return nil, nil
	}
	if frame.SampleRate <= 0 {
		return nil, fmt.Errorf("frame has invalid sample rate %d", frame.SampleRate)
	}

	rate := session.adoptRate(frame.SampleRate)
	if frame.SampleRate == rate {
		return frame.Samples, nil
	}

	if r.resampler == nil {
		return nil, fmt.Errorf("frame rate %d does not match session rate %d and no resampler is configured", frame.SampleRate, rate)
	}
	samples, err := r.resampler.Resample(frame.Samples, frame.SampleRate, rate)
	if err != nil {
		return nil, fmt.Errorf("resampling frame from %d to %d: %w", frame.SampleRate, rate, err)
	}
	return samples, nil
}

type concatFunc func(chunks [][]float32) ([]float32, error)

// finalizeChunks concatenates accumulated chunks in arrival order. If the
// concatenation fails, the first chunk alone is returned as a degraded result
// rather than failing the whole recording.
func finalizeChunks(chunks [][]float32, concat concatFunc, log zerolog.Logger) []float32 {
	if len(chunks) == 0 {
		return nil
	}
	samples, err := concat(chunks)
	if err != nil {
		log.Error().Err(err).Msg("final concatenation failed, returning first chunk")
		return chunks[0]
	}
	return samples
}

func concatChunks(chunks [][]float32) ([]float32, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks to concatenate")
	}
	if len(chunks) == 1 {
		return chunks[0], nil
	}

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	out := make([]float32, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out, nil
}
