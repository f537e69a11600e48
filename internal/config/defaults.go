package config

import "time"

// DefaultSimilarityThreshold mirrors internal/diarizer.DefaultSimilarityThreshold;
// kept as an independent constant since config must not import diarizer.
const DefaultSimilarityThreshold = 0.30

// DefaultActionItemThreshold mirrors internal/insight.ActionItemTaskThreshold.
const DefaultActionItemThreshold = 0.6

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() AppConfig {
	return AppConfig{
		ConfigVersion: "v1",
		DataDir:       "/var/lib/transcriptd",
		RecordingsDir: "/var/lib/transcriptd/recordings",
		ListenAddr:    ":8080",
		LogLevel:      "info",
		Diarization: DiarizationConfig{
			Enabled:             true,
			WorkerBin:           "diarizer-worker",
			SimilarityThreshold: DefaultSimilarityThreshold,
			MinSpeakers:         1,
			MaxSpeakers:         8,
			SkipEnabled:         false,
		},
		Transcription: TranscriptionConfig{
			WorkerBin: "transcriber-worker",
			ModelSize: "base",
			Language:  "en",
		},
		Insights: InsightsConfig{
			Enabled:          true,
			Strictness:       "strict",
			BatchMinChars:    400,
			BatchMaxWait:     30 * time.Second,
			ActionItemThresh: DefaultActionItemThreshold,
		},
		LLM: LLMConfig{
			DefaultProvider: "",
			Providers:       nil,
		},
		API: APIConfig{
			Token:            "",
			AllowQueryToken:  false,
			RateLimitEnabled: true,
			RateLimitRPS:     20,
			RateLimitBurst:   40,
		},
	}
}
