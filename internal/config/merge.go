package config

import "time"

// mergeFileConfig overlays non-empty/non-nil values from a parsed YAML
// file onto cfg, which already holds defaults.
func mergeFileConfig(cfg *AppConfig, fc *FileConfig) {
	if fc.ConfigVersion != "" {
		cfg.ConfigVersion = fc.ConfigVersion
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.RecordingsDir != "" {
		cfg.RecordingsDir = fc.RecordingsDir
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}

	d := fc.Diarization
	if d.Enabled != nil {
		cfg.Diarization.Enabled = *d.Enabled
	}
	if d.WorkerBin != "" {
		cfg.Diarization.WorkerBin = d.WorkerBin
	}
	if d.SimilarityThreshold != nil {
		cfg.Diarization.SimilarityThreshold = *d.SimilarityThreshold
	}
	if d.MinSpeakers != nil {
		cfg.Diarization.MinSpeakers = *d.MinSpeakers
	}
	if d.MaxSpeakers != nil {
		cfg.Diarization.MaxSpeakers = *d.MaxSpeakers
	}
	if d.SkipEnabled != nil {
		cfg.Diarization.SkipEnabled = *d.SkipEnabled
	}

	t := fc.Transcription
	if t.WorkerBin != "" {
		cfg.Transcription.WorkerBin = t.WorkerBin
	}
	if t.ModelSize != "" {
		cfg.Transcription.ModelSize = t.ModelSize
	}
	if t.Language != "" {
		cfg.Transcription.Language = t.Language
	}

	i := fc.Insights
	if i.Enabled != nil {
		cfg.Insights.Enabled = *i.Enabled
	}
	if i.Strictness != "" {
		cfg.Insights.Strictness = i.Strictness
	}
	if i.BatchMinChars != nil {
		cfg.Insights.BatchMinChars = *i.BatchMinChars
	}
	if i.BatchMaxWaitMS != nil {
		cfg.Insights.BatchMaxWait = msToDuration(*i.BatchMaxWaitMS)
	}
	if i.ActionItemThresh != nil {
		cfg.Insights.ActionItemThresh = *i.ActionItemThresh
	}

	if fc.LLM.DefaultProvider != "" {
		cfg.LLM.DefaultProvider = fc.LLM.DefaultProvider
	}
	if len(fc.LLM.Providers) > 0 {
		providers := make([]LLMProviderConfig, len(fc.LLM.Providers))
		for idx, p := range fc.LLM.Providers {
			providers[idx] = LLMProviderConfig{
				Name:     p.Name,
				BaseURL:  p.BaseURL,
				APIKey:   p.APIKey,
				Model:    p.Model,
				Priority: p.Priority,
			}
		}
		cfg.LLM.Providers = providers
	}

	a := fc.API
	if a.Token != "" {
		cfg.API.Token = a.Token
	}
	if a.AllowQueryToken != nil {
		cfg.API.AllowQueryToken = *a.AllowQueryToken
	}
	if a.RateLimitEnabled != nil {
		cfg.API.RateLimitEnabled = *a.RateLimitEnabled
	}
	if a.RateLimitRPS != nil {
		cfg.API.RateLimitRPS = *a.RateLimitRPS
	}
	if a.RateLimitBurst != nil {
		cfg.API.RateLimitBurst = *a.RateLimitBurst
	}
	if len(a.RateLimitWhitelist) > 0 {
		cfg.API.RateLimitWhitelist = append([]string(nil), a.RateLimitWhitelist...)
	}
}

// mergeEnvConfig overlays environment variables, which take precedence
// over both defaults and the file.
func mergeEnvConfig(cfg *AppConfig, lookup envLookupFunc) {
	cfg.DataDir = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_DATA_DIR", cfg.DataDir)
	cfg.RecordingsDir = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_RECORDINGS_DIR", cfg.RecordingsDir)
	cfg.ListenAddr = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_LOG_LEVEL", cfg.LogLevel)

	cfg.Diarization.Enabled = parseBoolWithLookup(configLogger, lookup, "TRANSCRIPTD_DIARIZATION_ENABLED", cfg.Diarization.Enabled)
	cfg.Diarization.WorkerBin = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_DIARIZATION_WORKER_BIN", cfg.Diarization.WorkerBin)
	cfg.Diarization.SimilarityThreshold = parseFloatWithLookup(configLogger, lookup, "TRANSCRIPTD_DIARIZATION_SIMILARITY_THRESHOLD", cfg.Diarization.SimilarityThreshold)
	cfg.Diarization.MinSpeakers = parseIntWithLookup(configLogger, lookup, "TRANSCRIPTD_DIARIZATION_MIN_SPEAKERS", cfg.Diarization.MinSpeakers)
	cfg.Diarization.MaxSpeakers = parseIntWithLookup(configLogger, lookup, "TRANSCRIPTD_DIARIZATION_MAX_SPEAKERS", cfg.Diarization.MaxSpeakers)
	cfg.Diarization.SkipEnabled = parseBoolWithLookup(configLogger, lookup, "TRANSCRIPTD_DIARIZATION_SKIP_ENABLED", cfg.Diarization.SkipEnabled)

	cfg.Transcription.WorkerBin = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_TRANSCRIPTION_WORKER_BIN", cfg.Transcription.WorkerBin)
	cfg.Transcription.ModelSize = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_TRANSCRIPTION_MODEL_SIZE", cfg.Transcription.ModelSize)
	cfg.Transcription.Language = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_TRANSCRIPTION_LANGUAGE", cfg.Transcription.Language)

	cfg.Insights.Enabled = parseBoolWithLookup(configLogger, lookup, "TRANSCRIPTD_INSIGHTS_ENABLED", cfg.Insights.Enabled)
	cfg.Insights.Strictness = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_INSIGHTS_STRICTNESS", cfg.Insights.Strictness)
	cfg.Insights.BatchMinChars = parseIntWithLookup(configLogger, lookup, "TRANSCRIPTD_INSIGHTS_BATCH_MIN_CHARS", cfg.Insights.BatchMinChars)
	cfg.Insights.BatchMaxWait = parseDurationWithLookup(configLogger, lookup, "TRANSCRIPTD_INSIGHTS_BATCH_MAX_WAIT", cfg.Insights.BatchMaxWait)
	cfg.Insights.ActionItemThresh = parseFloatWithLookup(configLogger, lookup, "TRANSCRIPTD_INSIGHTS_ACTION_ITEM_THRESHOLD", cfg.Insights.ActionItemThresh)

	cfg.LLM.DefaultProvider = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_LLM_DEFAULT_PROVIDER", cfg.LLM.DefaultProvider)

	cfg.API.Token = parseStringWithLookup(configLogger, lookup, "TRANSCRIPTD_API_TOKEN", cfg.API.Token)
	cfg.API.AllowQueryToken = parseBoolWithLookup(configLogger, lookup, "TRANSCRIPTD_API_ALLOW_QUERY_TOKEN", cfg.API.AllowQueryToken)
	cfg.API.RateLimitEnabled = parseBoolWithLookup(configLogger, lookup, "TRANSCRIPTD_API_RATE_LIMIT_ENABLED", cfg.API.RateLimitEnabled)
	cfg.API.RateLimitRPS = parseIntWithLookup(configLogger, lookup, "TRANSCRIPTD_API_RATE_LIMIT_RPS", cfg.API.RateLimitRPS)
	cfg.API.RateLimitBurst = parseIntWithLookup(configLogger, lookup, "TRANSCRIPTD_API_RATE_LIMIT_BURST", cfg.API.RateLimitBurst)
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
