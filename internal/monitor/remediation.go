package monitor

import "github.com/meetinglens/transcriptd/internal/model"

// remediationFor maps a FailureKind to the remediation text shown
// alongside the failure notification, §4.7.
func remediationFor(kind model.FailureKind) string {
	switch kind {
	case model.FailureModelsMissing:
		return "Download the diarization models and restart the session."
	case model.FailureTokenMissing:
		return "Set the required access token in settings, then restart the session."
	case model.FailureNativeBinaryMissing:
		return "Reinstall the diarization worker binary for this platform."
	case model.FailurePermissionDenied:
		return "Check file system permissions on the recordings and models directories."
	case model.FailureWorkerInitFailed:
		return "Inspect the diarizer's startup log; a model or configuration file may be corrupt."
	case model.FailureWorkerCrashed:
		return "The diarizer worker crashed unexpectedly; retry the session or acknowledge transcription-only mode."
	case model.FailureWorkerTimedOut:
		return "The diarizer worker stopped responding; retry, or reduce concurrent load."
	case model.FailureWorkerCancelled:
		return "The diarizer worker was cancelled; no action needed unless unexpected."
	default:
		return "Retry the session or acknowledge transcription-only mode to continue without speaker attribution."
	}
}
