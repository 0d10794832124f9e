// Package health reports whether the bot can serve a conversation with its
// current configuration. Checks never call paid provider APIs.
package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"coringa/voicebot/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Detail  string        `json:"detail,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Detail != "" {
			s += fmt.Sprintf(" [%s]", c.Detail)
		}
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// Check names double as gRPC health service names.
const (
	Recognition = "recognition"
	Generation  = "generation"
	Synthesis   = "synthesis"
	Discord     = "discord"
	FFmpeg      = "ffmpeg"
	Scratch     = "scratch"
)

// CheckAll runs all checks and returns combined status. Generation and
// synthesis always have an offline fallback, so they only fail when ctx is
// already done; they still report which providers are configured.
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkRecognition(ctx, cfg),
		checkGeneration(ctx, cfg),
		checkSynthesis(ctx, cfg),
		checkDiscord(ctx, cfg),
		checkFFmpeg(ctx, cfg),
		checkScratch(ctx, cfg),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func timed(name string, fn func(*CheckResult)) CheckResult {
	start := time.Now()
	r := CheckResult{Name: name}
	fn(&r)
	r.Latency = time.Since(start)
	return r
}

func configured(names ...string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

func checkRecognition(ctx context.Context, cfg config.Config) CheckResult {
	return timed(Recognition, func(r *CheckResult) {
		if err := ctx.Err(); err != nil {
			r.Error = err.Error()
			return
		}
		if cfg.Providers.Offline() {
			r.OK, r.Detail = true, "offline"
			return
		}
		var ps []string
		if config.Usable(cfg.Providers.WitAIKey) {
			ps = append(ps, "witai")
		}
		if config.Usable(cfg.Providers.OpenAIKey) {
			ps = append(ps, "whisper")
		}
		r.Detail = configured(ps...)
		if len(ps) == 0 {
			r.Error = "WIT_AI_KEY and OPENAI_API_KEY not set"
			return
		}
		r.OK = true
	})
}

func checkGeneration(ctx context.Context, cfg config.Config) CheckResult {
	return timed(Generation, func(r *CheckResult) {
		if err := ctx.Err(); err != nil {
			r.Error = err.Error()
			return
		}
		var ps []string
		if !cfg.Providers.Offline() {
			if config.Usable(cfg.Providers.OpenRouterKey) {
				ps = append(ps, "openrouter")
			}
			if config.Usable(cfg.Providers.OpenAIKey) {
				ps = append(ps, "openai")
			}
		}
		if len(ps) == 0 {
			ps = []string{"offline"}
		}
		r.Detail = configured(ps...)
		r.OK = true
	})
}

func checkSynthesis(ctx context.Context, cfg config.Config) CheckResult {
	return timed(Synthesis, func(r *CheckResult) {
		if err := ctx.Err(); err != nil {
			r.Error = err.Error()
			return
		}
		ps := []string{"placeholder"}
		if !cfg.Providers.Offline() && config.Usable(cfg.Providers.ElevenLabsKey) {
			ps = []string{"elevenlabs", "google", "placeholder"}
		}
		r.Detail = configured(ps...)
		r.OK = true
	})
}

func checkDiscord(ctx context.Context, cfg config.Config) CheckResult {
	return timed(Discord, func(r *CheckResult) {
		if err := ctx.Err(); err != nil {
			r.Error = err.Error()
			return
		}
		if cfg.Discord.Token == "" {
			r.Error = "DISCORD_TOKEN not set"
			return
		}
		r.OK = true
	})
}

func checkFFmpeg(ctx context.Context, cfg config.Config) CheckResult {
	return timed(FFmpeg, func(r *CheckResult) {
		if err := ctx.Err(); err != nil {
			r.Error = err.Error()
			return
		}
		p, err := exec.LookPath(cfg.Audio.FFmpegPath)
		if err != nil {
			r.Error = fmt.Sprintf("%s not found: %v", cfg.Audio.FFmpegPath, err)
			return
		}
		r.Detail = p
		r.OK = true
	})
}

func checkScratch(ctx context.Context, cfg config.Config) CheckResult {
	return timed(Scratch, func(r *CheckResult) {
		if err := ctx.Err(); err != nil {
			r.Error = err.Error()
			return
		}
		if err := os.MkdirAll(cfg.Audio.ScratchDir, 0o755); err != nil {
			r.Error = err.Error()
			return
		}
		f, err := os.CreateTemp(cfg.Audio.ScratchDir, ".probe-*")
		if err != nil {
			r.Error = fmt.Sprintf("not writable: %v", err)
			return
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		r.Detail, _ = filepath.Abs(cfg.Audio.ScratchDir)
		r.OK = true
	})
}

// NewGRPCServer returns a gRPC server exposing the standard health service,
// with one service name per check, plus reflection. Call Update to refresh
// the statuses.
func NewGRPCServer(opts ...grpc.ServerOption) (*grpc.Server, *grpchealth.Server) {
	s := grpc.NewServer(opts...)
	hs := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s, hs
}

// Update publishes st on hs. The empty service name carries the overall status.
func Update(hs *grpchealth.Server, st HealthStatus) {
	for _, c := range st.Checks {
		hs.SetServingStatus(c.Name, servingStatus(c.OK))
	}
	hs.SetServingStatus("", servingStatus(st.OK))
}

func servingStatus(ok bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if ok {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
