package discord

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/audio"
)

const (
	// frameSamples is 20ms at 48kHz, the frame size discord expects.
	frameSamples = 960
	sendTimeout  = 5 * time.Second
)

// Play transcodes path with ffmpeg to 48kHz stereo PCM, encodes it to opus and
// sends it on the voice connection. It returns once the last frame is queued.
func (c *Conn) Play(ctx context.Context, path string) error {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	select {
	case <-c.done:
		return errClosed
	default:
	}

	f := audio.DiscordFormat
	cmd := exec.CommandContext(ctx, c.g.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le",
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"pipe:1")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}()

	enc, err := audio.NewOpusEncoder(f)
	if err != nil {
		return err
	}

	if err := c.vc.Speaking(true); err != nil {
		c.log.Debug("speaking flag not set", zap.Error(err))
	}
	defer func() { _ = c.vc.Speaking(false) }()

	start := time.Now()
	r := bufio.NewReaderSize(out, 16384)
	buf := make([]byte, frameSamples*f.Channels*2)
	frames := 0
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			// pad the tail frame with silence
			clear(buf[n:])
			pkt, encErr := enc.Encode(audio.BytesToSamples(buf))
			if encErr != nil {
				return fmt.Errorf("opus encode: %w", encErr)
			}
			select {
			case c.vc.OpusSend <- pkt:
				frames++
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return errClosed
			case <-time.After(sendTimeout):
				return errors.New("timeout sending audio")
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read pcm: %w", err)
		}
	}
	playbackFrames.Add(float64(frames))
	c.log.Debug("playback queued", zap.String("path", path), zap.Int("frames", frames), zap.Duration("elapsed", time.Since(start)))
	return nil
}
