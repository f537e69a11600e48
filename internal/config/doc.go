// Package config loads and hot-reloads transcriptd's runtime configuration:
// diarization, transcription, live insight extraction, and LLM provider
// routing. Precedence is defaults, then an optional YAML file (strictly
// parsed — unknown keys fail fast), then environment variables, which win.
package config
