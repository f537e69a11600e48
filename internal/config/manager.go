package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Manager persists configuration back to disk, for operator-facing
// "save what I changed via the API" flows.
type Manager struct {
	configPath string
}

// NewManager creates a configuration manager writing to configPath.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath}
}

// Save serializes cfg to YAML and replaces configPath atomically via
// renameio's temp-file-then-rename so a reader never observes a
// partially-written config file.
func (m *Manager) Save(cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o750); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	fc := ToFileConfig(cfg)

	tmp, err := renameio.NewPendingFile(m.configPath, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer tmp.Cleanup()

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(2)
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close encoder: %w", err)
	}
	if err := tmp.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}

// ToFileConfig renders a resolved AppConfig back into the strict YAML
// shape, so "config dump --effective" and Manager.Save agree on exactly
// one AppConfig->FileConfig mapping.
func ToFileConfig(cfg AppConfig) FileConfig {
	providers := make([]FileLLMProviderConfig, len(cfg.LLM.Providers))
	for i, p := range cfg.LLM.Providers {
		providers[i] = FileLLMProviderConfig{
			Name:     p.Name,
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Model:    p.Model,
			Priority: p.Priority,
		}
	}

	return FileConfig{
		ConfigVersion: cfg.ConfigVersion,
		DataDir:       cfg.DataDir,
		RecordingsDir: cfg.RecordingsDir,
		ListenAddr:    cfg.ListenAddr,
		LogLevel:      cfg.LogLevel,
		Diarization: FileDiarizationConfig{
			Enabled:             boolPtr(cfg.Diarization.Enabled),
			WorkerBin:           cfg.Diarization.WorkerBin,
			SimilarityThreshold: floatPtr(cfg.Diarization.SimilarityThreshold),
			MinSpeakers:         intPtr(cfg.Diarization.MinSpeakers),
			MaxSpeakers:         intPtr(cfg.Diarization.MaxSpeakers),
			SkipEnabled:         boolPtr(cfg.Diarization.SkipEnabled),
		},
		Transcription: FileTranscriptionConfig{
			WorkerBin: cfg.Transcription.WorkerBin,
			ModelSize: cfg.Transcription.ModelSize,
			Language:  cfg.Transcription.Language,
		},
		Insights: FileInsightsConfig{
			Enabled:          boolPtr(cfg.Insights.Enabled),
			Strictness:       cfg.Insights.Strictness,
			BatchMinChars:    intPtr(cfg.Insights.BatchMinChars),
			BatchMaxWaitMS:   intPtr(int(cfg.Insights.BatchMaxWait.Milliseconds())),
			ActionItemThresh: floatPtr(cfg.Insights.ActionItemThresh),
		},
		LLM: FileLLMConfig{
			DefaultProvider: cfg.LLM.DefaultProvider,
			Providers:       providers,
		},
		API: FileAPIConfig{
			Token:              cfg.API.Token,
			AllowQueryToken:    boolPtr(cfg.API.AllowQueryToken),
			RateLimitEnabled:   boolPtr(cfg.API.RateLimitEnabled),
			RateLimitRPS:       intPtr(cfg.API.RateLimitRPS),
			RateLimitBurst:     intPtr(cfg.API.RateLimitBurst),
			RateLimitWhitelist: cfg.API.RateLimitWhitelist,
		},
	}
}

func boolPtr(b bool) *bool          { return &b }
func intPtr(i int) *int             { return &i }
func floatPtr(f float64) *float64   { return &f }
