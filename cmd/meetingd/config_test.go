// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meetinglens/transcriptd/internal/config"
)

func writeTestConfigYAML(t *testing.T, dataDir, recordingsDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "data_dir: " + dataDir + "\n" +
		"recordings_dir: " + recordingsDir + "\n" +
		"listen_addr: 127.0.0.1:0\n" +
		"log_level: info\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunConfigValidateAcceptsMinimalFile(t *testing.T) {
	path := writeTestConfigYAML(t, t.TempDir(), t.TempDir())
	if code := runConfigValidate([]string{"--file", path}); code != 0 {
		t.Fatalf("runConfigValidate returned %d, want 0", code)
	}
}

func TestRunConfigValidateRequiresFile(t *testing.T) {
	t.Setenv("TRANSCRIPTD_DATA_DIR", filepath.Join(t.TempDir(), "nonexistent"))
	if code := runConfigValidate(nil); code != 2 {
		t.Fatalf("runConfigValidate returned %d, want 2", code)
	}
}

func TestFileConfigFromAppConfigRedactsSecrets(t *testing.T) {
	cfg := config.AppConfig{
		DataDir:       "/data",
		RecordingsDir: "/recordings",
		ListenAddr:    "127.0.0.1:8080",
		LogLevel:      "info",
		API:           config.APIConfig{Token: "super-secret"},
		LLM: config.LLMConfig{
			Providers: []config.LLMProviderConfig{{Name: "primary", APIKey: "sk-secret"}},
		},
	}
	fileCfg := config.ToFileConfig(cfg)
	redactFileConfigSecrets(&fileCfg)

	if fileCfg.API.Token != "***" {
		t.Errorf("expected API token to be redacted, got %q", fileCfg.API.Token)
	}
	if fileCfg.LLM.Providers[0].APIKey != "***" {
		t.Errorf("expected provider API key to be redacted, got %q", fileCfg.LLM.Providers[0].APIKey)
	}
}

func TestRunConfigSaveWritesCanonicalFile(t *testing.T) {
	path := writeTestConfigYAML(t, t.TempDir(), t.TempDir())
	if code := runConfigSave([]string{"--file", path}); code != 0 {
		t.Fatalf("runConfigSave returned %d, want 0", code)
	}

	reloaded, err := config.NewLoader(path).Load()
	if err != nil {
		t.Fatalf("reload saved config: %v", err)
	}
	if reloaded.LogLevel != "info" {
		t.Errorf("expected saved config to round-trip log_level=info, got %q", reloaded.LogLevel)
	}
}
