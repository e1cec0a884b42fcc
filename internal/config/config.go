package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TranscriptionMode selects which delivery channel appends to the log.
type TranscriptionMode string

const (
	// ModeRelay consumes finalized transcripts pushed by the backend
	// pipeline over the transcript websocket.
	ModeRelay TranscriptionMode = "relay"
	// ModeDirect opens a recognition socket locally and feeds it the
	// mixed PCM frames.
	ModeDirect TranscriptionMode = "direct"
)

// Config stores runtime configuration for the agent.
type Config struct {
	API        APIConfig
	Deepgram   DeepgramConfig
	Transcript TranscriptConfig
	Room       RoomConfig
	Audio      AudioConfig
	Session    SessionConfig
	Log        LogConfig
	SentryDSN  string
}

type APIConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

type DeepgramConfig struct {
	CredentialURL  string
	APIBaseURL     string
	Model          string
	Language       string
	SmartFormat    bool
	Diarize        bool
	Punctuate      bool
	InterimResults bool
}

type TranscriptConfig struct {
	WSURL string
}

type RoomConfig struct {
	Role      string
	TrackName string
}

type AudioConfig struct {
	RecorderCommand string
	MicFormat       string
	MicDevice       string
	MicFilterChain  string
	MonitorFormat   string
	MonitorDevice   string
	SystemAudio     bool
	SampleRate      int
	Channels        int
}

type SessionConfig struct {
	Mode           TranscriptionMode
	ChunkSize      int
	StreamingGrace time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from a .env file (when present) and
// environment variables with sensible defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	cfg := Config{
		API: APIConfig{
			BaseURL:   strings.TrimSpace(os.Getenv("LEXLIVE_API_BASE")),
			AuthToken: strings.TrimSpace(os.Getenv("LEXLIVE_API_TOKEN")),
			Timeout:   time.Duration(envOrDefaultInt("LEXLIVE_API_TIMEOUT_MS", 15000)) * time.Millisecond,
		},
		Deepgram: DeepgramConfig{
			CredentialURL:  strings.TrimSpace(os.Getenv("LEXLIVE_DEEPGRAM_TOKEN_URL")),
			APIBaseURL:     envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:          envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:       strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat:    envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			Diarize:        envOrDefaultBool("DEEPGRAM_DIARIZE", true),
			Punctuate:      envOrDefaultBool("DEEPGRAM_PUNCTUATE", true),
			InterimResults: envOrDefaultBool("DEEPGRAM_INTERIM_RESULTS", true),
		},
		Transcript: TranscriptConfig{
			WSURL: strings.TrimSpace(os.Getenv("LEXLIVE_TRANSCRIPT_WS_URL")),
		},
		Room: RoomConfig{
			Role:      envOrDefault("LEXLIVE_ROLE", "lawyer"),
			TrackName: envOrDefault("LEXLIVE_TRACK_NAME", "session-audio"),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("LEXLIVE_FFMPEG_COMMAND", "ffmpeg"),
			MicFormat:       envOrDefault("LEXLIVE_MIC_INPUT_FORMAT", "pulse"),
			MicDevice:       envOrDefault("LEXLIVE_MIC_INPUT_DEVICE", "default"),
			MicFilterChain:  envOrDefault("LEXLIVE_MIC_FILTERS", "highpass=f=80,afftdn"),
			MonitorFormat:   envOrDefault("LEXLIVE_MONITOR_INPUT_FORMAT", "pulse"),
			MonitorDevice:   strings.TrimSpace(os.Getenv("LEXLIVE_MONITOR_INPUT_DEVICE")),
			SystemAudio:     envOrDefaultBool("LEXLIVE_CAPTURE_SYSTEM_AUDIO", false),
			SampleRate:      envOrDefaultInt("LEXLIVE_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("LEXLIVE_CHANNELS", 1),
		},
		Session: SessionConfig{
			Mode:           TranscriptionMode(envOrDefault("LEXLIVE_TRANSCRIPTION_MODE", string(ModeRelay))),
			ChunkSize:      envOrDefaultInt("LEXLIVE_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace: time.Duration(envOrDefaultInt("LEXLIVE_STREAMING_GRACE_MS", 1000)) * time.Millisecond,
		},
		Log: LogConfig{
			Level:  envOrDefault("LEXLIVE_LOG_LEVEL", "info"),
			Format: envOrDefault("LEXLIVE_LOG_FORMAT", "json"),
		},
		SentryDSN: strings.TrimSpace(os.Getenv("SENTRY_DSN")),
	}

	if cfg.API.BaseURL == "" {
		return Config{}, errors.New("LEXLIVE_API_BASE is not configured")
	}
	switch cfg.Session.Mode {
	case ModeRelay:
		if cfg.Transcript.WSURL == "" {
			return Config{}, errors.New("LEXLIVE_TRANSCRIPT_WS_URL is required in relay mode")
		}
	case ModeDirect:
		if cfg.Deepgram.CredentialURL == "" {
			return Config{}, errors.New("LEXLIVE_DEEPGRAM_TOKEN_URL is required in direct mode")
		}
	default:
		return Config{}, errors.New("LEXLIVE_TRANSCRIPTION_MODE must be relay or direct")
	}
	if cfg.Audio.SystemAudio && cfg.Audio.MonitorDevice == "" {
		return Config{}, errors.New("LEXLIVE_MONITOR_INPUT_DEVICE is required when system audio capture is enabled")
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
