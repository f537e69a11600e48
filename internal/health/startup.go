// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/meetinglens/transcriptd/internal/config"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment and dependencies before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkDataDir(logger, "data_dir", cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkDataDir(logger, "recordings_dir", cfg.RecordingsDir); err != nil {
		return fmt.Errorf("recordings directory check failed: %w", err)
	}
	if err := checkTargetedValidations(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, label, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(path, 0o750); mkErr != nil {
				return fmt.Errorf("%s does not exist and could not be created: %s: %w", label, path, mkErr)
			}
		} else {
			return err
		}
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory: %s", label, path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("%s is not writable: %s (error: %v)", label, path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Str("label", label).Msg("directory is writable")
	return nil
}

// checkTargetedValidations re-checks the handful of fields whose
// consequences only show up at process start (a bad listen address
// fails the bind, a missing worker binary fails the first recording),
// beyond what config.Validate already enforces on load.
func checkTargetedValidations(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddr, err)
		}
		if port != "" {
			if portNum, err := strconv.Atoi(port); err != nil || portNum < 0 || portNum > 65535 {
				return fmt.Errorf("invalid listen port %q in %q", port, cfg.ListenAddr)
			}
		}
		logger.Info().Str("addr", cfg.ListenAddr).Msg("listen address is valid")
	}

	if cfg.Diarization.Enabled {
		if _, err := resolveBinary(cfg.Diarization.WorkerBin); err != nil {
			return fmt.Errorf("diarization worker binary %q: %w", cfg.Diarization.WorkerBin, err)
		}
		logger.Info().Str("worker_bin", cfg.Diarization.WorkerBin).Msg("diarization worker binary found")
	}

	if _, err := resolveBinary(cfg.Transcription.WorkerBin); err != nil {
		return fmt.Errorf("transcription worker binary %q: %w", cfg.Transcription.WorkerBin, err)
	}
	logger.Info().Str("worker_bin", cfg.Transcription.WorkerBin).Msg("transcription worker binary found")

	if cfg.Insights.Enabled {
		for _, p := range cfg.LLM.Providers {
			u, err := url.Parse(p.BaseURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("llm provider %q: base_url must be an http(s) URL, got %q", p.Name, p.BaseURL)
			}
		}
		logger.Info().Int("providers", len(cfg.LLM.Providers)).Msg("llm provider URLs are valid")
	}

	return nil
}

// resolveBinary accepts either a bare command (resolved via PATH) or an
// absolute/relative path to an executable, mirroring how worker.Supervisor
// invokes exec.Command with cfg.Exe.
func resolveBinary(bin string) (string, error) {
	if bin == "" {
		return "", fmt.Errorf("not configured")
	}
	if filepath.IsAbs(bin) || filepath.Dir(bin) != "." {
		if _, err := os.Stat(bin); err != nil {
			return "", err
		}
		return bin, nil
	}
	return exec.LookPath(bin)
}
