package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/aousabdo/meetingsage/internal/domain"
)

const frameHeaderSize = 4

// DecodeFrame parses one binary wire frame: a uint32 little-endian sample
// rate followed by float32 little-endian mono samples.
func DecodeFrame(data []byte) (domain.AudioFrame, error) {
	if len(data) < frameHeaderSize+4 {
		return domain.AudioFrame{}, errors.New("frame too short")
	}
	if (len(data)-frameHeaderSize)%4 != 0 {
		return domain.AudioFrame{}, fmt.Errorf("frame payload of %d bytes is not float32-aligned", len(data)-frameHeaderSize)
	}

	rate := binary.LittleEndian.Uint32(data)
	if rate == 0 {
		return domain.AudioFrame{}, errors.New("frame sample rate is zero")
	}

	payload := data[frameHeaderSize:]
	samples := make([]float32, len(payload)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}

	return domain.AudioFrame{Samples: samples, SampleRate: int(rate)}, nil
}

// EncodeFrame renders a frame in the binary wire format.
func EncodeFrame(frame domain.AudioFrame) []byte {
	out := make([]byte, frameHeaderSize+len(frame.Samples)*4)
	binary.LittleEndian.PutUint32(out, uint32(frame.SampleRate))
	for i, s := range frame.Samples {
		binary.LittleEndian.PutUint32(out[frameHeaderSize+i*4:], math.Float32bits(s))
	}
	return out
}
