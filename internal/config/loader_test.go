package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeEnv(kv map[string]string) envLookupFunc {
	return func(key string) (string, bool) {
		v, ok := kv[key]
		return v, ok
	}
}

func TestLoaderDefaultsOnly(t *testing.T) {
	l := NewLoaderWithEnv("", fakeEnv(nil))
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, DefaultSimilarityThreshold, cfg.Diarization.SimilarityThreshold)
	require.Equal(t, "strict", cfg.Insights.Strictness)
}

func TestLoaderFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
diarization:
  similarity_threshold: 0.45
  max_speakers: 12
insights:
  strictness: loose
llm:
  default_provider: primary
  providers:
    - name: primary
      base_url: https://api.example.com/v1
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	l := NewLoaderWithEnv(path, fakeEnv(nil))
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, 0.45, cfg.Diarization.SimilarityThreshold)
	require.Equal(t, 12, cfg.Diarization.MaxSpeakers)
	require.Equal(t, "loose", cfg.Insights.Strictness)
	require.Equal(t, "primary", cfg.LLM.DefaultProvider)
	require.Len(t, cfg.LLM.Providers, 1)
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	l := NewLoaderWithEnv(path, fakeEnv(map[string]string{
		"TRANSCRIPTD_LOG_LEVEL": "debug",
	}))
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoaderRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not_a_real_key: true\n"), 0o644))

	l := NewLoaderWithEnv(path, fakeEnv(nil))
	_, err := l.Load()
	require.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoaderMissingFileIsNotAnError(t *testing.T) {
	l := NewLoaderWithEnv(filepath.Join(t.TempDir(), "absent.yaml"), fakeEnv(nil))
	_, err := l.Load()
	require.NoError(t, err)
}

func TestLoaderRejectsInvalidConfig(t *testing.T) {
	l := NewLoaderWithEnv("", fakeEnv(map[string]string{
		"TRANSCRIPTD_DIARIZATION_MAX_SPEAKERS": "0",
		"TRANSCRIPTD_DIARIZATION_MIN_SPEAKERS": "3",
	}))
	_, err := l.Load()
	require.Error(t, err)
}
