package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	soxr "github.com/zaf/resample"
)

// SoxrResampler converts mono float32 sample arrays between rates using
// libsoxr. Safe for use from a single consumer goroutine.
type SoxrResampler struct{}

func (SoxrResampler) Resample(samples []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", fromRate, toRate)
	}

	var out bytes.Buffer
	r, err := soxr.New(&out, float64(fromRate), float64(toRate), 1, soxr.F32, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("creating resampler: %w", err)
	}

	in := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(in[i*4:], math.Float32bits(s))
	}

	if _, err := r.Write(in); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("resampler write: %w", err)
	}
	// Close flushes the remaining output.
	if err := r.Close(); err != nil {
		return nil, fmt.Errorf("resampler flush: %w", err)
	}

	raw := out.Bytes()
	converted := make([]float32, len(raw)/4)
	for i := range converted {
		converted[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return converted, nil
}
