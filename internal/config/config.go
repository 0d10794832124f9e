package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port      string
		GRPCPort  string
		LogLevel  string
		LogFormat string
	}
	Discord struct {
		Token         string
		ApplicationID string
	}
	Providers Providers
	Capture   struct {
		Timeout    time.Duration
		Silence    time.Duration
		MinBytes   int
		SampleRate int
		Channels   int
		FrameSize  int
		SilenceRMS float64
	}
	Turn struct {
		PollInterval    time.Duration
		SpeechEndGrace  time.Duration
		RearmDelay      time.Duration
		RetryDelay      time.Duration
		MaxEmptyRetries int
		ReconnectGrace  time.Duration
		InitialArmDelay time.Duration
	}
	Conversation struct {
		HistoryCap     int
		TTL            time.Duration
		SweepInterval  time.Duration
		DefaultPersona string
		PersonaFile    string
	}
	Audio struct {
		ScratchDir string
		FFmpegPath string
	}
	Auth struct {
		StreamTokenSecret string
		StreamTokenTTL    time.Duration
		TokenSkewSecs     int
	}
}

// Providers holds credentials and model settings for the recognition,
// generation and synthesis chains.
type Providers struct {
	Mode            string
	WitAIKey        string
	OpenAIKey       string
	OpenRouterKey   string
	OpenRouterModel string
	OpenAIModel     string
	MaxTokens       int
	WhisperModel    string
	WhisperLanguage string
	ElevenLabsKey   string
	ElevenVoiceID   string
	ElevenModel     string
	GoogleTTSLang   string
	RequestTimeout  time.Duration
}

// Offline reports whether the deterministic stubs should answer instead of
// live providers.
func (p Providers) Offline() bool {
	m := strings.ToLower(p.Mode)
	return m == "offline" || m == "test"
}

// Usable reports whether a credential is set and is not a template placeholder.
func Usable(key string) bool {
	k := strings.TrimSpace(key)
	return k != "" && !strings.Contains(k, "sua_chave")
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "console")

	v.SetDefault("providers.mode", "live")
	v.SetDefault("providers.openrouter_model", "openai/gpt-3.5-turbo")
	v.SetDefault("providers.openai_model", "gpt-3.5-turbo")
	v.SetDefault("providers.max_tokens", 300)
	v.SetDefault("providers.whisper_model", "whisper-1")
	v.SetDefault("providers.whisper_language", "pt")
	v.SetDefault("providers.elevenlabs_voice_id", "pNInz6obpgDQGcFmaJgB")
	v.SetDefault("providers.elevenlabs_model", "eleven_multilingual_v2")
	v.SetDefault("providers.google_tts_lang", "pt-BR")
	v.SetDefault("providers.request_timeout", 30*time.Second)

	v.SetDefault("capture.timeout", 7000*time.Millisecond)
	v.SetDefault("capture.silence", 1000*time.Millisecond)
	v.SetDefault("capture.min_bytes", 5000)
	v.SetDefault("capture.sample_rate", 48000)
	v.SetDefault("capture.channels", 2)
	v.SetDefault("capture.frame_size", 960)
	v.SetDefault("capture.silence_rms", 0)

	v.SetDefault("turn.poll_interval", 5*time.Second)
	v.SetDefault("turn.speech_end_grace", 2*time.Second)
	v.SetDefault("turn.rearm_delay", time.Second)
	v.SetDefault("turn.retry_delay", 3*time.Second)
	v.SetDefault("turn.max_empty_retries", 0)
	v.SetDefault("turn.reconnect_grace", 5*time.Second)
	v.SetDefault("turn.initial_arm_delay", time.Second)

	v.SetDefault("conversation.history_cap", 10)
	v.SetDefault("conversation.ttl", 30*time.Minute)
	v.SetDefault("conversation.sweep_interval", 10*time.Minute)
	v.SetDefault("conversation.default_persona", "sério")

	v.SetDefault("audio.scratch_dir", "temp")
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")

	v.SetDefault("auth.stream_token_ttl", 15*time.Minute)
	v.SetDefault("auth.token_skew_secs", 60)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.grpc_port", "GRPC_PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_format", "LOG_FORMAT")

	v.BindEnv("discord.token", "DISCORD_TOKEN")
	v.BindEnv("discord.application_id", "DISCORD_APPLICATION_ID")

	v.BindEnv("providers.mode", "BOT_MODE")
	v.BindEnv("providers.wit_ai_key", "WIT_AI_KEY")
	v.BindEnv("providers.openai_key", "OPENAI_API_KEY")
	v.BindEnv("providers.openrouter_key", "OPENROUTER_API_KEY")
	v.BindEnv("providers.openrouter_model", "OPENROUTER_MODEL")
	v.BindEnv("providers.openai_model", "OPENAI_MODEL")
	v.BindEnv("providers.max_tokens", "LLM_MAX_TOKENS")
	v.BindEnv("providers.whisper_model", "WHISPER_MODEL")
	v.BindEnv("providers.whisper_language", "WHISPER_LANGUAGE")
	v.BindEnv("providers.elevenlabs_key", "ELEVENLABS_API_KEY")
	v.BindEnv("providers.elevenlabs_voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("providers.elevenlabs_model", "ELEVENLABS_MODEL")
	v.BindEnv("providers.google_tts_lang", "GOOGLE_TTS_LANG")
	v.BindEnv("providers.request_timeout", "PROVIDER_REQUEST_TIMEOUT")

	v.BindEnv("capture.timeout", "CAPTURE_TIMEOUT")
	v.BindEnv("capture.silence", "CAPTURE_SILENCE")
	v.BindEnv("capture.min_bytes", "CAPTURE_MIN_BYTES")
	v.BindEnv("capture.silence_rms", "CAPTURE_SILENCE_RMS")

	v.BindEnv("turn.poll_interval", "TURN_POLL_INTERVAL")
	v.BindEnv("turn.speech_end_grace", "TURN_SPEECH_END_GRACE")
	v.BindEnv("turn.rearm_delay", "TURN_REARM_DELAY")
	v.BindEnv("turn.retry_delay", "TURN_RETRY_DELAY")
	v.BindEnv("turn.max_empty_retries", "TURN_MAX_EMPTY_RETRIES")
	v.BindEnv("turn.reconnect_grace", "TURN_RECONNECT_GRACE")

	v.BindEnv("conversation.history_cap", "HISTORY_CAP")
	v.BindEnv("conversation.ttl", "CONVERSATION_TTL")
	v.BindEnv("conversation.sweep_interval", "CONVERSATION_SWEEP_INTERVAL")
	v.BindEnv("conversation.default_persona", "DEFAULT_PERSONA")
	v.BindEnv("conversation.persona_file", "PERSONA_FILE")

	v.BindEnv("audio.scratch_dir", "AUDIO_SCRATCH_DIR")
	v.BindEnv("audio.ffmpeg_path", "FFMPEG_PATH")

	v.BindEnv("auth.stream_token_secret", "STREAM_TOKEN_SECRET")
	v.BindEnv("auth.stream_token_ttl", "STREAM_TOKEN_TTL")
	v.BindEnv("auth.token_skew_secs", "TOKEN_SKEW_SECS")

	v.BindEnv("config_file", "CONFIG_FILE")
	if f := v.GetString("config_file"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("config file %s ignored: %v", f, err)
		}
	}

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.GRPCPort = toString(v.Get("server.grpc_port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFormat = v.GetString("server.log_format")

	c.Discord.Token = v.GetString("discord.token")
	c.Discord.ApplicationID = v.GetString("discord.application_id")

	c.Providers = Providers{
		Mode:            v.GetString("providers.mode"),
		WitAIKey:        v.GetString("providers.wit_ai_key"),
		OpenAIKey:       v.GetString("providers.openai_key"),
		OpenRouterKey:   v.GetString("providers.openrouter_key"),
		OpenRouterModel: v.GetString("providers.openrouter_model"),
		OpenAIModel:     v.GetString("providers.openai_model"),
		MaxTokens:       v.GetInt("providers.max_tokens"),
		WhisperModel:    v.GetString("providers.whisper_model"),
		WhisperLanguage: v.GetString("providers.whisper_language"),
		ElevenLabsKey:   v.GetString("providers.elevenlabs_key"),
		ElevenVoiceID:   v.GetString("providers.elevenlabs_voice_id"),
		ElevenModel:     v.GetString("providers.elevenlabs_model"),
		GoogleTTSLang:   v.GetString("providers.google_tts_lang"),
		RequestTimeout:  v.GetDuration("providers.request_timeout"),
	}

	c.Capture.Timeout = v.GetDuration("capture.timeout")
	c.Capture.Silence = v.GetDuration("capture.silence")
	c.Capture.MinBytes = v.GetInt("capture.min_bytes")
	c.Capture.SampleRate = v.GetInt("capture.sample_rate")
	c.Capture.Channels = v.GetInt("capture.channels")
	c.Capture.FrameSize = v.GetInt("capture.frame_size")
	c.Capture.SilenceRMS = v.GetFloat64("capture.silence_rms")

	c.Turn.PollInterval = v.GetDuration("turn.poll_interval")
	c.Turn.SpeechEndGrace = v.GetDuration("turn.speech_end_grace")
	c.Turn.RearmDelay = v.GetDuration("turn.rearm_delay")
	c.Turn.RetryDelay = v.GetDuration("turn.retry_delay")
	c.Turn.MaxEmptyRetries = v.GetInt("turn.max_empty_retries")
	c.Turn.ReconnectGrace = v.GetDuration("turn.reconnect_grace")
	c.Turn.InitialArmDelay = v.GetDuration("turn.initial_arm_delay")

	c.Conversation.HistoryCap = v.GetInt("conversation.history_cap")
	c.Conversation.TTL = v.GetDuration("conversation.ttl")
	c.Conversation.SweepInterval = v.GetDuration("conversation.sweep_interval")
	c.Conversation.DefaultPersona = v.GetString("conversation.default_persona")
	c.Conversation.PersonaFile = v.GetString("conversation.persona_file")

	c.Audio.ScratchDir = v.GetString("audio.scratch_dir")
	c.Audio.FFmpegPath = v.GetString("audio.ffmpeg_path")

	c.Auth.StreamTokenSecret = v.GetString("auth.stream_token_secret")
	c.Auth.StreamTokenTTL = v.GetDuration("auth.stream_token_ttl")
	c.Auth.TokenSkewSecs = v.GetInt("auth.token_skew_secs")

	log.Printf("config loaded: port=%s mode=%s persona=%s", c.Server.Port, c.Providers.Mode, c.Conversation.DefaultPersona)
	return c
}

func toString(v any) string { return fmt.Sprint(v) }
