package audio

import (
	"encoding/binary"
	"math"
	"os"
	"time"
)

// SamplesToBytes packs int16 samples little-endian.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples unpacks little-endian PCM16; a trailing odd byte is ignored.
func BytesToSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// RMS of PCM16 audio.
func RMS(b []byte) float64 {
	n := len(b) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(b[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Duration of a PCM16 buffer in format f.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / (2 * f.Channels)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// WritePlaceholder writes a short silent WAV that any player accepts.
func WritePlaceholder(path string) error {
	f := Format{SampleRate: 48000, Channels: 2}
	// 100ms of silence
	pcm := make([]byte, f.SampleRate/10*f.Channels*2)
	return os.WriteFile(path, EncodeWAV(pcm, f), 0o644)
}
