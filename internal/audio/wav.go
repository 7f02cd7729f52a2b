package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/domain"
)

const (
	fallbackToneSeconds = 5.0
	fallbackToneBaseHz  = 440.0
	minUploadBytes      = 10_000
	minUploadSeconds    = 1.0
)

// Sink writes finished recordings and uploads into a temp directory as WAV
// files. Degenerate captures (empty, silent, too short) are replaced with a
// synthetic tone so downstream processing always receives a usable file; the
// substitution is logged and flagged on the result.
type Sink struct {
	dir         string
	defaultRate int
	minDuration time.Duration
	log         zerolog.Logger
}

func NewSink(dir string, defaultRate int, minDuration time.Duration, log zerolog.Logger) (*Sink, error) {
	if defaultRate <= 0 {
		defaultRate = 16000
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio dir %q: %w", dir, err)
	}
	return &Sink{
		dir:         dir,
		defaultRate: defaultRate,
		minDuration: minDuration,
		log:         log.With().Str("component", "audio").Logger(),
	}, nil
}

// SaveBuffer validates and writes a consolidated sample buffer.
func (s *Sink) SaveBuffer(buf domain.SampleBuffer) (domain.SavedAudio, error) {
	rate := buf.SampleRate
	if rate <= 0 {
		rate = s.defaultRate
	}

	samples := buf.Samples
	synthetic := false
	switch {
	case len(samples) == 0:
		s.log.Warn().Msg("recording is empty, substituting synthetic tone")
		synthetic = true
	case allZero(samples):
		s.log.Warn().Msg("recording is silent, substituting synthetic tone")
		synthetic = true
	case buf.Duration() < s.minDuration.Seconds():
		s.log.Warn().Float64("duration", buf.Duration()).
			Msg("recording is too short, substituting synthetic tone")
		synthetic = true
	}
	if synthetic {
		samples = syntheticTone(rate)
	}

	path := filepath.Join(s.dir, uuid.NewString()+".wav")
	if err := writeWAV(path, samples, rate); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("failed to write recording")
		return s.fallbackFile(rate)
	}

	saved := domain.SavedAudio{
		Path:      path,
		Duration:  float64(len(samples)) / float64(rate),
		Synthetic: synthetic,
	}
	s.log.Info().Str("path", path).Float64("duration", saved.Duration).Msg("recording saved")
	return saved, nil
}

// SaveUpload persists uploaded audio bytes. WAV payloads shorter than one
// second get the same synthetic substitution as degenerate recordings.
func (s *Sink) SaveUpload(name string, data []byte) (domain.SavedAudio, error) {
	if len(data) == 0 {
		s.log.Warn().Msg("uploaded audio is empty")
		return s.fallbackFile(s.defaultRate)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".wav"
	}
	path := filepath.Join(s.dir, uuid.NewString()+ext)

	if len(data) < minUploadBytes {
		s.log.Warn().Int("bytes", len(data)).Msg("uploaded audio is too small, substituting synthetic tone")
		samples := syntheticTone(s.defaultRate)
		if err := writeWAV(path, samples, s.defaultRate); err != nil {
			return s.fallbackFile(s.defaultRate)
		}
		return domain.SavedAudio{Path: path, Duration: fallbackToneSeconds, Synthetic: true}, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("failed to save upload")
		return s.fallbackFile(s.defaultRate)
	}

	duration := s.Duration(path)
	if ext == ".wav" && duration < minUploadSeconds {
		s.log.Warn().Float64("duration", duration).
			Msg("uploaded audio is too short, substituting synthetic tone")
		samples := syntheticTone(s.defaultRate)
		if err := writeWAV(path, samples, s.defaultRate); err != nil {
			return s.fallbackFile(s.defaultRate)
		}
		return domain.SavedAudio{Path: path, Duration: fallbackToneSeconds, Synthetic: true}, nil
	}

	s.log.Info().Str("path", path).Int("bytes", len(data)).Msg("upload saved")
	return domain.SavedAudio{Path: path, Duration: duration}, nil
}

// Duration reads the length of a WAV file in seconds. Returns 0 when the
// file cannot be decoded.
func (s *Sink) Duration(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return 0
	}
	defer streamer.Close()

	if format.SampleRate <= 0 {
		return 0
	}
	return float64(streamer.Len()) / float64(format.SampleRate)
}

// CleanupOld removes temp audio files older than maxAge and returns the
// number deleted.
func (s *Sink) CleanupOld(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to scan audio dir")
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to remove old audio file")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("cleaned up old audio files")
	}
	return removed
}

// fallbackFile writes a synthetic tone when the primary save failed, keeping
// the pipeline supplied with a valid file.
func (s *Sink) fallbackFile(rate int) (domain.SavedAudio, error) {
	path := filepath.Join(s.dir, "fallback_"+uuid.NewString()+".wav")
	if err := writeWAV(path, syntheticTone(rate), rate); err != nil {
		return domain.SavedAudio{}, fmt.Errorf("writing fallback audio: %w", err)
	}
	s.log.Info().Str("path", path).Msg("created fallback audio file")
	return domain.SavedAudio{Path: path, Duration: fallbackToneSeconds, Synthetic: true}, nil
}

func writeWAV(path string, samples []float32, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, &sliceStreamer{samples: samples}, format); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// sliceStreamer adapts a mono sample slice to beep's streamer contract.
type sliceStreamer struct {
	samples []float32
	pos     int
}

func (s *sliceStreamer) Stream(out [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for i := range out {
		if s.pos >= len(s.samples) {
			break
		}
		v := float64(s.samples[s.pos])
		out[i][0] = v
		out[i][1] = v
		s.pos++
		n++
	}
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }

// syntheticTone generates the five-second multi-harmonic tone substituted
// for degenerate captures.
func syntheticTone(rate int) []float32 {
	n := int(fallbackToneSeconds * float64(rate))
	samples := make([]float32, n)

	peak := 0.0
	for i := range samples {
		t := float64(i) / float64(rate)
		v := math.Sin(2*math.Pi*fallbackToneBaseHz*t) +
			0.5*math.Sin(2*math.Pi*fallbackToneBaseHz*2*t) +
			0.25*math.Sin(2*math.Pi*fallbackToneBaseHz*3*t)
		samples[i] = float32(v)
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak > 0 {
		scale := float32(0.8 / peak)
		for i := range samples {
			samples[i] *= scale
		}
	}
	return samples
}

func allZero(samples []float32) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}
