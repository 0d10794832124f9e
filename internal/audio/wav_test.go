package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEncodeReadRoundTrip(t *testing.T) {
	pcm := SamplesToBytes([]int16{1, -1, 300, -300, 32767, -32768})
	wav := EncodeWAV(pcm, DiscordFormat)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("unexpected wav length %d", len(wav))
	}
	got, f, err := ReadWAVPCM16(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f != DiscordFormat {
		t.Fatalf("format mismatch: %+v", f)
	}
	if !bytes.Equal(got, pcm) {
		t.Fatalf("pcm mismatch")
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, _, err := ReadWAVPCM16(bytes.NewReader([]byte{0xFF, 0xFB, 0x90, 0x44, 0x00})); err == nil {
		t.Fatalf("expected error for non-wav input")
	}
}

func TestPlaceholderIsValidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.wav")
	if err := WritePlaceholder(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	pcm, format, err := ReadWAVPCM16(f)
	if err != nil {
		t.Fatalf("placeholder not parseable: %v", err)
	}
	if d := format.Duration(len(pcm)); d != 100*time.Millisecond {
		t.Fatalf("expected 100ms placeholder, got %v", d)
	}
	if RMS(pcm) != 0 {
		t.Fatalf("placeholder should be silent")
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Fatalf("empty buffer rms must be 0")
	}
	if got := RMS(SamplesToBytes([]int16{100, -100, 100, -100})); got != 100 {
		t.Fatalf("expected rms 100, got %v", got)
	}
}
