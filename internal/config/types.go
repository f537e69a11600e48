package config

import "time"

// AppConfig is the fully resolved, validated runtime configuration.
type AppConfig struct {
	ConfigVersion string
	ConfigStrict  bool

	DataDir       string
	RecordingsDir string
	ListenAddr    string
	LogLevel      string

	Diarization   DiarizationConfig
	Transcription TranscriptionConfig
	Insights      InsightsConfig
	LLM           LLMConfig
	API           APIConfig
}

// APIConfig governs internal/httpapi's authentication and rate-limiting.
type APIConfig struct {
	Token              string
	AllowQueryToken    bool
	RateLimitEnabled   bool
	RateLimitRPS       int
	RateLimitBurst     int
	RateLimitWhitelist []string
}

// DiarizationConfig governs the streaming diarizer (C3) and the aligner's
// segment-matching tolerance.
type DiarizationConfig struct {
	Enabled             bool
	WorkerBin           string
	SimilarityThreshold float64
	MinSpeakers         int
	MaxSpeakers         int
	SkipEnabled         bool
}

// TranscriptionConfig governs the streaming transcriber (C4).
type TranscriptionConfig struct {
	WorkerBin string
	ModelSize string
	Language  string
}

// InsightsConfig governs the live insight engine (C8)'s batching policy
// and its extraction strictness.
type InsightsConfig struct {
	Enabled          bool
	Strictness       string // "strict", "balanced" or "loose"
	BatchMinChars    int
	BatchMaxWait     time.Duration
	ActionItemThresh float64
}

// LLMConfig governs the provider router (C9).
type LLMConfig struct {
	DefaultProvider string
	Providers       []LLMProviderConfig
}

// LLMProviderConfig describes one OpenAI-chat-completions-compatible
// backend the router can fail over to.
type LLMProviderConfig struct {
	Name     string
	BaseURL  string
	APIKey   string
	Model    string
	Priority int
}

// FileConfig is the strict-parsed YAML shape. Pointer fields distinguish
// "absent from file" (nil, defaults/env apply) from "explicitly zero".
type FileConfig struct {
	ConfigVersion string `yaml:"config_version"`
	DataDir       string `yaml:"data_dir"`
	RecordingsDir string `yaml:"recordings_dir"`
	ListenAddr    string `yaml:"listen_addr"`
	LogLevel      string `yaml:"log_level"`

	Diarization   FileDiarizationConfig   `yaml:"diarization"`
	Transcription FileTranscriptionConfig `yaml:"transcription"`
	Insights      FileInsightsConfig      `yaml:"insights"`
	LLM           FileLLMConfig           `yaml:"llm"`
	API           FileAPIConfig           `yaml:"api"`
}

type FileAPIConfig struct {
	Token              string   `yaml:"token"`
	AllowQueryToken    *bool    `yaml:"allow_query_token"`
	RateLimitEnabled   *bool    `yaml:"rate_limit_enabled"`
	RateLimitRPS       *int     `yaml:"rate_limit_rps"`
	RateLimitBurst     *int     `yaml:"rate_limit_burst"`
	RateLimitWhitelist []string `yaml:"rate_limit_whitelist"`
}

type FileDiarizationConfig struct {
	Enabled             *bool    `yaml:"enabled"`
	WorkerBin           string   `yaml:"worker_bin"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	MinSpeakers         *int     `yaml:"min_speakers"`
	MaxSpeakers         *int     `yaml:"max_speakers"`
	SkipEnabled         *bool    `yaml:"skip_enabled"`
}

type FileTranscriptionConfig struct {
	WorkerBin string `yaml:"worker_bin"`
	ModelSize string `yaml:"model_size"`
	Language  string `yaml:"language"`
}

type FileInsightsConfig struct {
	Enabled          *bool    `yaml:"enabled"`
	Strictness       string   `yaml:"strictness"`
	BatchMinChars    *int     `yaml:"batch_min_chars"`
	BatchMaxWaitMS   *int     `yaml:"batch_max_wait_ms"`
	ActionItemThresh *float64 `yaml:"action_item_threshold"`
}

type FileLLMConfig struct {
	DefaultProvider string                  `yaml:"default_provider"`
	Providers       []FileLLMProviderConfig `yaml:"providers"`
}

type FileLLMProviderConfig struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Priority int    `yaml:"priority"`
}
