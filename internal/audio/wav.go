// Package audio holds PCM16 helpers shared by capture, recognition and synthesis.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Format describes interleaved little-endian PCM16.
type Format struct {
	SampleRate int
	Channels   int
}

// DiscordFormat is what the voice gateway delivers after opus decoding.
var DiscordFormat = Format{SampleRate: 48000, Channels: 2}

// EncodeWAV wraps raw PCM16 in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, f Format) []byte {
	const headerLen = 44
	blockAlign := f.Channels * 2
	byteRate := f.SampleRate * blockAlign
	out := make([]byte, headerLen+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[headerLen:], pcm)
	return out
}

// ReadWAVPCM16 walks the RIFF chunks and returns the PCM16 payload with its format.
// Only uncompressed 16-bit audio is accepted.
func ReadWAVPCM16(r io.Reader) ([]byte, Format, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, Format{}, err
	}
	if len(b) < 44 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("not a WAV")
	}
	var f Format
	off := 12
	for off+8 <= len(b) {
		cid := string(b[off : off+4])
		csz := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		switch cid {
		case "fmt ":
			if csz < 16 || off+csz > len(b) {
				return nil, Format{}, fmt.Errorf("bad fmt chunk")
			}
			tag := binary.LittleEndian.Uint16(b[off : off+2])
			bits := binary.LittleEndian.Uint16(b[off+14 : off+16])
			if tag != 1 || bits != 16 {
				return nil, Format{}, fmt.Errorf("unsupported WAV format tag=%d bits=%d", tag, bits)
			}
			f.Channels = int(binary.LittleEndian.Uint16(b[off+2 : off+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
			off += csz
		case "data":
			if f.SampleRate == 0 {
				return nil, Format{}, fmt.Errorf("data chunk before fmt chunk")
			}
			if off+csz > len(b) {
				return nil, Format{}, fmt.Errorf("truncated data chunk")
			}
			return b[off : off+csz], f, nil
		default:
			off += csz
		}
		// chunks are word aligned
		if csz%2 == 1 {
			off++
		}
	}
	return nil, Format{}, fmt.Errorf("no data chunk")
}
