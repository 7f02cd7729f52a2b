package usecase

import (
	"sync"

	"github.com/aousabdo/meetingsage/internal/domain"
)

// recordingSession is one capture attempt from start to stop. The consumer
// goroutine owns the transient chunk list; the accumulated chunk list and
// counters are guarded so a timed-out Stop can read a partial buffer.
type recordingSession struct {
	queue *FrameQueue
	done  chan struct{}

	stateMu sync.Mutex
	state   domain.SessionState

	bufMu      sync.Mutex
	chunks     [][]float32
	frameCount int
	sampleRate int

	statsMu sync.Mutex
	stats   domain.RecorderStats
}

func newRecordingSession() *recordingSession {
	return &recordingSession{
		queue: NewFrameQueue(),
		done:  make(chan struct{}),
		state: domain.SessionStateActive,
	}
}

func (s *recordingSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *recordingSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// adoptRate records the session sample rate from the first frame observed and
// returns the rate all later frames are normalized to.
func (s *recordingSession) adoptRate(frameRate int) int {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	if s.sampleRate == 0 && frameRate > 0 {
		s.sampleRate = frameRate
	}
	return s.sampleRate
}

func (s *recordingSession) addFrames(n int) {
	s.bufMu.Lock()
	s.frameCount += n
	s.bufMu.Unlock()
}

func (s *recordingSession) appendChunk(chunk []float32) {
	s.bufMu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.bufMu.Unlock()
}

// snapshotBuffer returns the accumulated chunks along with the session rate
// and frame count. The slice header is copied so the caller can concatenate
// without racing a still-running consumer.
func (s *recordingSession) snapshotBuffer() ([][]float32, int, int) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	chunks := make([][]float32, len(s.chunks))
	copy(chunks, s.chunks)
	return chunks, s.sampleRate, s.frameCount
}

// refreshStats rebuilds the observability snapshot. Called by the consumer at
// most once per stats interval.
func (s *recordingSession) refreshStats(transientChunks int) {
	s.bufMu.Lock()
	frames := s.frameCount
	chunks := len(s.chunks) + transientChunks
	rate := s.sampleRate
	s.bufMu.Unlock()

	var duration float64
	if rate > 0 {
		duration = float64(frames) / float64(rate)
	}

	s.statsMu.Lock()
	s.stats = domain.RecorderStats{
		FramesProcessed: frames,
		QueueDepth:      s.queue.Len(),
		Chunks:          chunks,
		SampleRate:      rate,
		Duration:        duration,
	}
	s.statsMu.Unlock()
}

func (s *recordingSession) statsSnapshot() domain.RecorderStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}
