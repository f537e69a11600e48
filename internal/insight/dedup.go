package insight

import (
	"context"
	"strings"

	"github.com/meetinglens/transcriptd/internal/metrics"
	"github.com/meetinglens/transcriptd/internal/model"
)

// jaccard computes word-set Jaccard similarity between two bodies,
// §4.8's dedup rule.
func jaccard(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for t := range sa {
		if sb[t] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		out[f] = true
	}
	return out
}

// persistCandidates dedups each candidate against already-seen live
// notes of the same kind (Jaccard >= 0.85 merges into the existing
// note, extending its evidence range) and persists the rest as new
// live InsightNotes; qualifying action items are also promoted to
// Tasks, §4.8.
func (e *Engine) persistCandidates(ctx context.Context, candidates []Candidate) error {
	e.mu.Lock()
	seen := e.seenNotes
	e.mu.Unlock()

	for _, c := range candidates {
		merged := false
		for _, existing := range seen[c.Kind] {
			if jaccard(existing.body, c.Body) >= DedupJaccardThreshold {
				if err := e.store.UpdateNoteEvidenceRange(ctx, existing.id, c.EvidenceStart, c.EvidenceEnd); err != nil {
					return err
				}
				merged = true
				break
			}
		}
		if merged {
			continue
		}

		note := model.InsightNote{
			MeetingID: e.meetingID,
			Kind:      c.Kind,
			Body:      c.Body,
			EvidenceRange: model.EvidenceRange{
				StartMS: c.EvidenceStart,
				EndMS:   c.EvidenceEnd,
			},
			Confidence: c.Confidence,
			Status:     model.InsightLive,
		}
		id, err := e.store.CreateNote(ctx, note)
		if err != nil {
			return err
		}
		metrics.InsightNotesTotal.WithLabelValues(string(c.Kind)).Inc()

		e.mu.Lock()
		e.seenNotes[c.Kind] = append(e.seenNotes[c.Kind], noteRecord{id: id, body: c.Body})
		e.notesPersisted++
		e.mu.Unlock()

		if c.Kind == model.InsightActionItem && c.Confidence >= ActionItemTaskThreshold {
			_, err := e.store.CreateTask(ctx, model.Task{
				MeetingID:    e.meetingID,
				Title:        c.Body,
				Assignee:     c.Assignee,
				Priority:     defaultPriority(c.Priority),
				Status:       model.TaskOpen,
				DueMS:        c.DueMS,
				SourceNoteID: id,
			})
			if err != nil {
				return err
			}
			metrics.TasksCreatedTotal.Inc()
			e.mu.Lock()
			e.tasksCreated++
			e.mu.Unlock()
		}
	}
	return nil
}

func defaultPriority(p model.TaskPriority) model.TaskPriority {
	if p == "" {
		return model.PriorityMedium
	}
	return p
}

// filterBySubject discards candidates unrelated to subject unless
// strictness is loose, §4.8 stage 2. This package implements the
// "inline guardrail" variant of stage 2 (keyword overlap against the
// detected subject); internal/insight/llmextractor.go's DetectSubject
// supplies the subject text.
func filterBySubject(candidates []Candidate, subject string, strictness Strictness) []Candidate {
	if strictness == StrictnessLoose || subject == "" {
		return candidates
	}
	threshold := 0.05
	if strictness == StrictnessStrict {
		threshold = 0.15
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if jaccard(subject, c.Body) >= threshold {
			out = append(out, c)
		}
	}
	return out
}
