// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recordings decides when a meeting's captured WAV file is
// finished being written so the sanitizer (§4.1) and diarization/
// transcription workers can safely treat it as final, §4.10.
package recordings

import (
	"os"
	"time"
)

// FinalizeState is whether a recording file is still being written or
// is settled and ready for post-processing.
type FinalizeState string

const (
	StateWriting  FinalizeState = "writing"
	StateFinished FinalizeState = "finished"
)

// FinalizeConfig tunes the stability check the orchestrator runs on
// stop before handing the WAV file to the sanitizer, §4.1/§4.10.
type FinalizeConfig struct {
	StableWindow time.Duration // default 2s; Classify does not read it
	MinSizeBytes int64         // default 44 (the canonical WAV header size); anything smaller is a stub
}

// DefaultFinalizeConfig returns the default stability window for a
// locally captured recording, §4.10.
func DefaultFinalizeConfig() FinalizeConfig {
	return FinalizeConfig{StableWindow: 2 * time.Second, MinSizeBytes: 44}
}

// Classify reports StateFinished when info's size is at least
// cfg.MinSizeBytes, and StateWriting otherwise. It looks only at that
// size: it does not check whether the file is still growing, and
// cfg.StableWindow is not consulted. The caller (C10) is expected to
// have already stopped the capture source.
func Classify(absPath string, info os.FileInfo, cfg FinalizeConfig) FinalizeState {
	if info.Size() < cfg.MinSizeBytes {
		return StateWriting
	}
	return StateFinished
}
