package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"coringa/voicebot/internal/audio"
	"coringa/voicebot/internal/gateway"
	"coringa/voicebot/internal/sessions"
	"coringa/voicebot/internal/stt"
)

type fixture struct {
	reg  *sessions.Registry
	conn *gateway.MockConn
	rec  *stt.Mock
	p    *Pipeline
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	reg := sessions.NewRegistry(nil)
	conn := gateway.NewMockConn("g1")
	if _, err := reg.Open("g1", "c1", conn); err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := &stt.Mock{TranscribeFunc: func(context.Context, stt.Audio) (string, error) { return "olá", nil }}
	p := New(reg, stt.NewChain(nil, rec), opts, nil).WithDecoder(func(audio.Format) (audio.Decoder, error) {
		return audio.PassthroughDecoder{}, nil
	})
	return &fixture{reg: reg, conn: conn, rec: rec, p: p}
}

func (f *fixture) start(user string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		res, _ := f.p.Capture(context.Background(), "g1", user)
		out <- res
	}()
	return out
}

func waitStream(t *testing.T, c *gateway.MockConn, user string) *gateway.MockStream {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := c.Stream(user); s != nil {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no audio subscription for %s", user)
	return nil
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatalf("capture did not finish")
		return Result{}
	}
}

func pushN(t *testing.T, s *gateway.MockStream, n, size int) {
	t.Helper()
	for i := 0; i < n; i++ {
		frame := make([]byte, size)
		for j := range frame {
			frame[j] = byte(i + j)
		}
		if err := s.Push(frame); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
}

func fastOpts() Options {
	return Options{Timeout: time.Second, Silence: 30 * time.Millisecond, MinBytes: 5000, Format: audio.DiscordFormat}
}

func TestBelowThresholdSkipsRecognition(t *testing.T) {
	f := newFixture(t, fastOpts())
	ch := f.start("u1")
	pushN(t, waitStream(t, f.conn, "u1"), 10, 100)

	res := waitResult(t, ch)
	if res.Text != "" || res.Recognized {
		t.Fatalf("expected discarded capture, got %+v", res)
	}
	if res.State != sessions.StateCompleted {
		t.Fatalf("expected completed, got %v", res.State)
	}
	if f.rec.CallCount() != 0 {
		t.Fatalf("recognizer must not be called below threshold")
	}
	if f.reg.Listening("u1") != nil {
		t.Fatalf("gate not released")
	}
}

func TestSilenceEndsCapture(t *testing.T) {
	f := newFixture(t, fastOpts())
	ch := f.start("u1")
	pushN(t, waitStream(t, f.conn, "u1"), 6, 1000)

	res := waitResult(t, ch)
	if res.Text != "olá" || !res.Recognized || res.Provider != "mock" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.State != sessions.StateCompleted || res.Bytes != 6000 {
		t.Fatalf("unexpected state/bytes %v/%d", res.State, res.Bytes)
	}
	calls := f.rec.Calls()
	if len(calls) != 1 || len(calls[0].PCM) != 6000 || calls[0].Format != audio.DiscordFormat {
		t.Fatalf("unexpected recognizer input %+v", calls)
	}
}

func TestTimeoutWithContentRecognizesPartialAudio(t *testing.T) {
	opts := fastOpts()
	opts.Silence = 10 * time.Second
	opts.Timeout = 80 * time.Millisecond
	f := newFixture(t, opts)
	ch := f.start("u1")
	pushN(t, waitStream(t, f.conn, "u1"), 7, 1000)

	res := waitResult(t, ch)
	if res.State != sessions.StateTimedOut {
		t.Fatalf("expected timed out, got %v", res.State)
	}
	if !res.Recognized || res.Text != "olá" {
		t.Fatalf("partial audio must be recognized, got %+v", res)
	}
	if calls := f.rec.Calls(); len(calls) != 1 || len(calls[0].PCM) != 7000 {
		t.Fatalf("recognizer did not receive partial audio")
	}
}

func TestTimeoutWithoutAudioIsEmpty(t *testing.T) {
	opts := fastOpts()
	opts.Timeout = 40 * time.Millisecond
	f := newFixture(t, opts)

	res, err := f.p.Capture(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if res.Text != "" || res.Recognized || res.State != sessions.StateTimedOut {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestGateRejectionHasNoSideEffects(t *testing.T) {
	f := newFixture(t, fastOpts())
	held, err := f.reg.Acquire("g1", "u1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	_, err = f.p.Capture(context.Background(), "g1", "u1")
	if !errors.Is(err, sessions.ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}
	if len(f.conn.Subscriptions()) != 0 {
		t.Fatalf("rejected capture must not subscribe")
	}
	if f.reg.Listening("u1") != held {
		t.Fatalf("rejected capture disturbed the holder")
	}
}

func TestChannelCloseCancelsCapture(t *testing.T) {
	opts := fastOpts()
	opts.Silence = 10 * time.Second
	opts.Timeout = 10 * time.Second
	f := newFixture(t, opts)
	ch := f.start("u1")
	stream := waitStream(t, f.conn, "u1")
	pushN(t, stream, 8, 1000)

	f.reg.Close("g1")

	res := waitResult(t, ch)
	if !res.Cancelled || res.Text != "" {
		t.Fatalf("expected cancelled empty result, got %+v", res)
	}
	if f.rec.CallCount() != 0 {
		t.Fatalf("cancelled capture must not reach recognition")
	}
	if f.reg.Listening("u1") != nil || len(f.reg.ListeningInRoom("g1")) != 0 {
		t.Fatalf("listening session survived close")
	}
	select {
	case <-stream.Closed():
	case <-time.After(time.Second):
		t.Fatalf("audio subscription not closed")
	}
}

func TestCallerCancelReleasesGate(t *testing.T) {
	opts := fastOpts()
	opts.Timeout = 10 * time.Second
	f := newFixture(t, opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		res, _ := f.p.Capture(ctx, "g1", "u1")
		done <- res
	}()
	waitStream(t, f.conn, "u1")
	cancel()

	if res := waitResult(t, done); !res.Cancelled {
		t.Fatalf("expected cancelled, got %+v", res)
	}
	if f.reg.Listening("u1") != nil {
		t.Fatalf("gate leaked after caller cancel")
	}
}

type failingDecoder struct{}

func (failingDecoder) Decode([]byte) ([]byte, error) { return nil, errors.New("corrupt frame") }

func TestDecodeErrorWithoutAudioIsEmpty(t *testing.T) {
	f := newFixture(t, fastOpts())
	f.p.WithDecoder(func(audio.Format) (audio.Decoder, error) { return failingDecoder{}, nil })
	ch := f.start("u1")
	pushN(t, waitStream(t, f.conn, "u1"), 1, 100)

	res := waitResult(t, ch)
	if res.State != sessions.StateErrored || res.Text != "" || res.Recognized {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.reg.Listening("u1") != nil {
		t.Fatalf("gate not released after error")
	}
}

func TestSubscribeErrorIsEmpty(t *testing.T) {
	f := newFixture(t, fastOpts())
	f.conn.SubscribeErr = errors.New("not in channel")

	res, err := f.p.Capture(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("subscription failures must not propagate: %v", err)
	}
	if res.State != sessions.StateErrored || res.Text != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.reg.Listening("u1") != nil {
		t.Fatalf("gate not released after subscribe error")
	}
}

func TestStreamEndCompletesCapture(t *testing.T) {
	opts := fastOpts()
	opts.Silence = 10 * time.Second
	f := newFixture(t, opts)
	ch := f.start("u1")
	s := waitStream(t, f.conn, "u1")
	pushN(t, s, 6, 1000)
	s.End()

	res := waitResult(t, ch)
	if res.State != sessions.StateCompleted || res.Text != "olá" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestQuietFramesDoNotExtendCapture(t *testing.T) {
	opts := fastOpts()
	opts.SilenceRMS = 500
	opts.Timeout = 150 * time.Millisecond
	f := newFixture(t, opts)
	ch := f.start("u1")
	s := waitStream(t, f.conn, "u1")
	// zero samples have RMS 0, so the silence window never starts
	for i := 0; i < 6; i++ {
		if err := s.Push(make([]byte, 1000)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	res := waitResult(t, ch)
	if res.State != sessions.StateTimedOut {
		t.Fatalf("expected quiet frames to run into the timeout, got %v", res.State)
	}
}

func TestNotOpenRoom(t *testing.T) {
	f := newFixture(t, fastOpts())
	if _, err := f.p.Capture(context.Background(), "other", "u1"); !errors.Is(err, sessions.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}
