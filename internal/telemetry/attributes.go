// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for transcriptd.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Session attributes, §4.10.
	SessionMeetingIDKey = "session.meeting_id"
	SessionStatusKey    = "session.status"
	SessionDurationKey  = "session.duration_ms"

	// Diarization/transcription worker attributes, §4.3/§4.4.
	WorkerComponentKey = "worker.component"
	WorkerExeKey       = "worker.exe"
	WorkerPIDKey       = "worker.pid"

	// LLM provider attributes, §4.9.
	LLMProviderKey = "llm.provider"
	LLMModelKey    = "llm.model"
	LLMLatencyKey  = "llm.latency_ms"

	// Insight engine attributes, §4.8.
	InsightKindKey       = "insight.kind"
	InsightBatchCharsKey = "insight.batch_chars"
	InsightNotesCountKey = "insight.notes_count"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes creates span attributes describing a meeting session, §4.10.
func SessionAttributes(meetingID, status string, durationMS int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if meetingID != "" {
		attrs = append(attrs, attribute.String(SessionMeetingIDKey, meetingID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(SessionStatusKey, status))
	}
	if durationMS > 0 {
		attrs = append(attrs, attribute.Int64(SessionDurationKey, durationMS))
	}
	return attrs
}

// WorkerAttributes creates span attributes for a diarizer/transcriber subprocess, §4.2.
func WorkerAttributes(component, exe string, pid int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(WorkerComponentKey, component),
		attribute.String(WorkerExeKey, exe),
		attribute.Int(WorkerPIDKey, pid),
	}
}

// LLMAttributes creates span attributes for a provider-router chat call, §4.9.
func LLMAttributes(provider, model string, latencyMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(LLMProviderKey, provider),
		attribute.String(LLMModelKey, model),
		attribute.Int64(LLMLatencyKey, latencyMS),
	}
}

// InsightAttributes creates span attributes for a live insight batch, §4.8.
func InsightAttributes(kind string, batchChars, notesCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(InsightKindKey, kind),
		attribute.Int(InsightBatchCharsKey, batchChars),
		attribute.Int(InsightNotesCountKey, notesCount),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
