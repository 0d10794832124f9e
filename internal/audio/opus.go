package audio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// Decoder turns one encoded frame into PCM16 bytes.
type Decoder interface {
	Decode(frame []byte) ([]byte, error)
}

// OpusDecoder decodes discord voice packets. One decoder per speaker stream;
// opus decoders carry state between frames and are not safe for concurrent use.
type OpusDecoder struct {
	dec      *opus.Decoder
	channels int
	buf      []int16
}

// maxFrameSamples covers 120ms at 48kHz, the largest opus frame.
const maxFrameSamples = 5760

func NewOpusDecoder(f Format) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(f.SampleRate, f.Channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, channels: f.Channels, buf: make([]int16, maxFrameSamples*f.Channels)}, nil
}

func (d *OpusDecoder) Decode(frame []byte) ([]byte, error) {
	n, err := d.dec.Decode(frame, d.buf)
	if err != nil {
		return nil, err
	}
	return SamplesToBytes(d.buf[:n*d.channels]), nil
}

// OpusEncoder packs PCM16 frames for playback.
type OpusEncoder struct {
	enc *opus.Encoder
	out []byte
}

func NewOpusEncoder(f Format) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(f.SampleRate, f.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return &OpusEncoder{enc: enc, out: make([]byte, 4000)}, nil
}

// Encode returns a fresh slice so callers may hand it to another goroutine.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.out)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, e.out[:n])
	return out, nil
}

// PassthroughDecoder returns frames unchanged; used when frames already carry PCM.
type PassthroughDecoder struct{}

func (PassthroughDecoder) Decode(frame []byte) ([]byte, error) { return frame, nil }
