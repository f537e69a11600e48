package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Insights.Strictness = "balanced"
	cfg.LLM.Providers = []LLMProviderConfig{{Name: "primary", BaseURL: "https://api.example.com", Priority: 1}}
	cfg.LLM.DefaultProvider = "primary"

	mgr := NewManager(path)
	require.NoError(t, mgr.Save(cfg))

	loaded, err := NewLoaderWithEnv(path, fakeEnv(nil)).Load()
	require.NoError(t, err)
	require.Equal(t, "balanced", loaded.Insights.Strictness)
	require.Equal(t, "primary", loaded.LLM.DefaultProvider)
	require.Len(t, loaded.LLM.Providers, 1)
	require.Equal(t, "https://api.example.com", loaded.LLM.Providers[0].BaseURL)
}
