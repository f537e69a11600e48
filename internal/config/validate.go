package config

import (
	"fmt"
	"strings"
)

// validationError aggregates every failed check so an operator sees all
// problems in a misconfigured file at once instead of one-at-a-time,
// mirroring the teacher's accumulate-then-report validator shape.
type validationError struct {
	messages []string
}

func (e *validationError) add(format string, args ...interface{}) {
	e.messages = append(e.messages, fmt.Sprintf(format, args...))
}

func (e *validationError) Err() error {
	if len(e.messages) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(e.messages, "; "))
}

// Validate checks an AppConfig for internally-consistent, usable values.
func Validate(cfg AppConfig) error {
	v := &validationError{}

	if strings.TrimSpace(cfg.DataDir) == "" {
		v.add("data_dir: must not be empty")
	}
	if strings.TrimSpace(cfg.RecordingsDir) == "" {
		v.add("recordings_dir: must not be empty")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		v.add("listen_addr: must not be empty")
	}

	d := cfg.Diarization
	if d.Enabled {
		if d.SimilarityThreshold < 0 || d.SimilarityThreshold > 1 {
			v.add("diarization.similarity_threshold: must be between 0 and 1, got %v", d.SimilarityThreshold)
		}
		if d.MinSpeakers < 1 {
			v.add("diarization.min_speakers: must be at least 1, got %d", d.MinSpeakers)
		}
		if d.MaxSpeakers < d.MinSpeakers {
			v.add("diarization.max_speakers: must be >= min_speakers (%d), got %d", d.MinSpeakers, d.MaxSpeakers)
		}
		if strings.TrimSpace(d.WorkerBin) == "" {
			v.add("diarization.worker_bin: must not be empty when diarization is enabled")
		}
	}

	t := cfg.Transcription
	if strings.TrimSpace(t.WorkerBin) == "" {
		v.add("transcription.worker_bin: must not be empty")
	}

	i := cfg.Insights
	if i.Enabled {
		switch i.Strictness {
		case "strict", "balanced", "loose":
		default:
			v.add("insights.strictness: must be 'strict', 'balanced' or 'loose', got %q", i.Strictness)
		}
		if i.BatchMinChars < 0 {
			v.add("insights.batch_min_chars: must be >= 0, got %d", i.BatchMinChars)
		}
		if i.BatchMaxWait <= 0 {
			v.add("insights.batch_max_wait: must be positive, got %v", i.BatchMaxWait)
		}
		if i.ActionItemThresh < 0 || i.ActionItemThresh > 1 {
			v.add("insights.action_item_threshold: must be between 0 and 1, got %v", i.ActionItemThresh)
		}
		if strings.TrimSpace(cfg.LLM.DefaultProvider) != "" {
			found := false
			for _, p := range cfg.LLM.Providers {
				if p.Name == cfg.LLM.DefaultProvider {
					found = true
					break
				}
			}
			if !found {
				v.add("llm.default_provider: %q is not among llm.providers", cfg.LLM.DefaultProvider)
			}
		}
		for idx, p := range cfg.LLM.Providers {
			if strings.TrimSpace(p.Name) == "" {
				v.add("llm.providers[%d].name: must not be empty", idx)
			}
			if strings.TrimSpace(p.BaseURL) == "" {
				v.add("llm.providers[%d].base_url: must not be empty", idx)
			}
		}
	}

	if cfg.API.RateLimitEnabled {
		if cfg.API.RateLimitRPS <= 0 {
			v.add("api.rate_limit_rps: must be positive when rate limiting is enabled, got %d", cfg.API.RateLimitRPS)
		}
		if cfg.API.RateLimitBurst <= 0 {
			v.add("api.rate_limit_burst: must be positive when rate limiting is enabled, got %d", cfg.API.RateLimitBurst)
		}
	}

	return v.Err()
}
