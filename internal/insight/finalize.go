package insight

import (
	"context"

	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/model"
)

// Finalize runs the orchestrated finalization pass, §4.8: it
// regenerates each of the six insight kinds independently from the
// full session transcript and replaces that kind's live notes with a
// finalized set. One kind's failure (e.g. a provider outage mid-pass,
// scenario S4) does not abort the others — UnifiedInsightsResult
// reports which kinds completed and which did not. A kind whose
// extraction fails keeps its prior live notes untouched; a store error
// while writing a kind's finalized notes happens after that kind's live
// notes were deleted.
func (e *Engine) Finalize(ctx context.Context, fullText string) UnifiedInsightsResult {
	subject := e.currentSubject(ctx, fullText)

	result := UnifiedInsightsResult{Sections: make([]SectionResult, 0, len(model.AllInsightKinds))}
	for _, kind := range model.AllInsightKinds {
		sr := e.finalizeKind(ctx, fullText, subject, kind)
		result.Sections = append(result.Sections, sr)
		if sr.OK {
			result.SectionsCompleted++
		} else {
			result.SectionsFailed++
		}
	}

	result.Success = result.SectionsFailed == 0
	result.PartialSuccess = result.SectionsCompleted > 0 && result.SectionsFailed > 0
	return result
}

func (e *Engine) finalizeKind(ctx context.Context, fullText, subject string, kind model.InsightKind) SectionResult {
	candidates, err := e.extractor.Extract(ctx, fullText, subject)
	if err != nil {
		log.L().Warn().Str("component", "insight").Str("meeting_id", e.meetingID).Str("kind", string(kind)).Err(err).Msg("finalization section failed; live notes retained")
		return SectionResult{Kind: kind, OK: false, Error: err.Error()}
	}

	var ofKind []Candidate
	for _, c := range candidates {
		if c.Kind == kind {
			ofKind = append(ofKind, c)
		}
	}
	ofKind = filterBySubject(ofKind, subject, e.cfg.Strictness)

	if err := e.store.DeleteLiveNotesByKind(ctx, e.meetingID, kind); err != nil {
		return SectionResult{Kind: kind, OK: false, Error: err.Error()}
	}
	for _, c := range ofKind {
		note := model.InsightNote{
			MeetingID: e.meetingID,
			Kind:      c.Kind,
			Body:      c.Body,
			EvidenceRange: model.EvidenceRange{
				StartMS: c.EvidenceStart,
				EndMS:   c.EvidenceEnd,
			},
			Confidence: c.Confidence,
			Status:     model.InsightFinalized,
		}
		if _, err := e.store.CreateNote(ctx, note); err != nil {
			return SectionResult{Kind: kind, OK: false, Error: err.Error()}
		}
		e.mu.Lock()
		e.notesPersisted++
		e.mu.Unlock()
	}
	return SectionResult{Kind: kind, OK: true}
}
