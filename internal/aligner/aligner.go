// Package aligner implements the Temporal Aligner (C5): a pure function
// that joins diarizer segments and transcriber segments into
// speaker-attributed transcript rows, §4.5. It holds no goroutines and
// no I/O — callers (the orchestrator) feed it events and persist what
// it returns.
package aligner

import (
	"sort"

	"github.com/meetinglens/transcriptd/internal/model"
)

// Defaults from §4.5.
const (
	DefaultDominanceFraction = 0.8   // α: fraction of duration the dominant speaker must cover
	DefaultMinSegmentMS      = 250   // minimum overlap kept when splitting across a speaker boundary
	DefaultMinCoverage       = 0.3   // coverage fraction below which a row becomes pending
	SnapToleranceMS          = 50    // alignment error absorbed by snapping to the dominant speaker
)

// Config parameterizes the alignment thresholds, §4.5/§6.
type Config struct {
	DominanceFraction float64
	MinSegmentMS      int64
	MinCoverage       float64
}

// DefaultConfig returns §4.5's defaults.
func DefaultConfig() Config {
	return Config{
		DominanceFraction: DefaultDominanceFraction,
		MinSegmentMS:      DefaultMinSegmentMS,
		MinCoverage:       DefaultMinCoverage,
	}
}

// PendingEntry is a transcriber segment that could not be attributed to
// a speaker yet — awaiting diarizer catch-up or a correction, §4.5 step
// 2d. It is re-evaluated whenever the diarizer buffer changes.
type PendingEntry struct {
	MeetingID          string
	Text               string
	StartMS            int64
	EndMS              int64
	TranscriberConfidence float64
}

// Aligner holds the ordered diarizer segment buffer for one meeting and
// produces TranscriptRows as transcriber segments finalize. It is not
// safe for concurrent use; the orchestrator serializes access to it
// on its single logical task, §5.
type Aligner struct {
	meetingID string
	cfg       Config

	segments []model.DiarizationSegment // ordered by StartMS, corrections applied in place
	pending  []PendingEntry
}

// New constructs an Aligner for one meeting.
func New(meetingID string, cfg Config) *Aligner {
	if cfg.DominanceFraction == 0 {
		cfg.DominanceFraction = DefaultDominanceFraction
	}
	if cfg.MinSegmentMS == 0 {
		cfg.MinSegmentMS = DefaultMinSegmentMS
	}
	if cfg.MinCoverage == 0 {
		cfg.MinCoverage = DefaultMinCoverage
	}
	return &Aligner{meetingID: meetingID, cfg: cfg}
}

// AddDiarizationSegment inserts a finalized diarizer segment into the
// ordered buffer, §4.5 step 1.
func (a *Aligner) AddDiarizationSegment(seg model.DiarizationSegment) {
	idx := sort.Search(len(a.segments), func(i int) bool {
		return a.segments[i].StartMS >= seg.StartMS
	})
	a.segments = append(a.segments, model.DiarizationSegment{})
	copy(a.segments[idx+1:], a.segments[idx:])
	a.segments[idx] = seg
}

// ApplyCorrection re-labels every diarizer segment overlapping
// [startMS,endMS] to newSpeaker, in place — no segment is deleted,
// §3/§4.5. It returns nothing and does not re-attribute pending
// entries itself; callers run Reevaluate afterwards for that.
func (a *Aligner) ApplyCorrection(startMS, endMS int64, newSpeaker model.SpeakerID) {
	for i := range a.segments {
		s := &a.segments[i]
		if overlap(s.StartMS, s.EndMS, startMS, endMS) > 0 {
			s.SpeakerID = newSpeaker
		}
	}
}

// Pending returns a snapshot of transcriber segments still awaiting
// diarizer coverage.
func (a *Aligner) Pending() []PendingEntry {
	out := make([]PendingEntry, len(a.pending))
	copy(out, a.pending)
	return out
}

// Reevaluate re-runs alignment for all pending entries after a
// correction or new diarizer segments arrive, returning any rows that
// can now be emitted. Entries still uncovered remain pending.
func (a *Aligner) Reevaluate() []model.TranscriptRow {
	var rows []model.TranscriptRow
	remaining := a.pending[:0:0]
	for _, p := range a.pending {
		rs, ok := a.align(p.Text, p.StartMS, p.EndMS, p.TranscriberConfidence)
		if ok {
			rows = append(rows, rs...)
		} else {
			remaining = append(remaining, p)
		}
	}
	a.pending = remaining
	return rows
}

// AlignFinal processes one finalized transcriber segment, §4.5 step 2.
// Zero-length transcripts are dropped per the edge case in §4.5.
func (a *Aligner) AlignFinal(text string, startMS, endMS int64, confidence float64) []model.TranscriptRow {
	if endMS <= startMS || text == "" {
		return nil
	}
	rows, ok := a.align(text, startMS, endMS, confidence)
	if !ok {
		a.pending = append(a.pending, PendingEntry{
			MeetingID:             a.meetingID,
			Text:                  text,
			StartMS:               startMS,
			EndMS:                 endMS,
			TranscriberConfidence: confidence,
		})
		return nil
	}
	return rows
}

// CoverageFraction reports the fraction of [startMS,endMS] covered by
// any diarizer segment, feeding C7's degraded-alignment signal.
func (a *Aligner) CoverageFraction(startMS, endMS int64) float64 {
	total := endMS - startMS
	if total <= 0 {
		return 1
	}
	var covered int64
	for _, s := range a.segments {
		covered += overlap(startMS, endMS, s.StartMS, s.EndMS)
	}
	frac := float64(covered) / float64(total)
	if frac > 1 {
		frac = 1
	}
	return frac
}

type overlapSpan struct {
	speaker    model.SpeakerID
	confidence float64
	start      int64
	end        int64
	dur        int64
}

// align implements §4.5 steps 2a-2c plus the confidence formula (step
// 3) and the ≤50ms snap rule. ok is false when the segment must become
// pending (step 2d).
func (a *Aligner) align(text string, t0, t1 int64, transcriberConf float64) ([]model.TranscriptRow, bool) {
	var spans []overlapSpan
	for _, s := range a.segments {
		ov := overlap(t0, t1, s.StartMS, s.EndMS)
		if ov <= 0 {
			continue
		}
		spans = append(spans, overlapSpan{
			speaker:    s.SpeakerID,
			confidence: s.Confidence,
			start:      maxI64(t0, s.StartMS),
			end:        minI64(t1, s.EndMS),
			dur:        ov,
		})
	}

	total := t1 - t0
	if len(spans) == 0 {
		frac := a.CoverageFraction(t0, t1)
		if frac < a.cfg.MinCoverage {
			return nil, false
		}
		// Coverage elsewhere in the window is sufficient per policy but
		// this exact span has no direct overlap; nothing to attribute.
		return nil, false
	}

	dominant, dominantDur := dominantSpeaker(spans)
	if dominantDur >= int64(a.cfg.DominanceFraction*float64(total)) || withinSnapTolerance(total, dominantDur) {
		return []model.TranscriptRow{{
			MeetingID:  a.meetingID,
			SpeakerID:  dominant.speaker,
			Text:       text,
			StartMS:    t0,
			EndMS:      t1,
			Confidence: transcriberConf * dominant.confidence,
			IsFinal:    true,
		}}, true
	}

	// Step 2c: split at diarizer boundaries, allocate text proportionally
	// by duration, keep only segments exceeding MinSegmentMS.
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var rows []model.TranscriptRow
	for _, sp := range spans {
		if sp.dur < a.cfg.MinSegmentMS {
			continue
		}
		frac := float64(sp.dur) / float64(total)
		rows = append(rows, model.TranscriptRow{
			MeetingID:  a.meetingID,
			SpeakerID:  sp.speaker,
			Text:       proportionalText(text, frac, sp.start-t0, total),
			StartMS:    sp.start,
			EndMS:      sp.end,
			Confidence: transcriberConf * sp.confidence,
			IsFinal:    true,
		})
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

func dominantSpeaker(spans []overlapSpan) (overlapSpan, int64) {
	totals := map[model.SpeakerID]int64{}
	bestConf := map[model.SpeakerID]float64{}
	for _, s := range spans {
		totals[s.speaker] += s.dur
		if s.confidence > bestConf[s.speaker] {
			bestConf[s.speaker] = s.confidence
		}
	}
	var best model.SpeakerID
	var bestDur int64 = -1
	var bestStart int64 = 1<<62
	for _, s := range spans {
		dur := totals[s.speaker]
		if dur > bestDur || (dur == bestDur && bestConf[s.speaker] > bestConf[best]) || (dur == bestDur && s.start < bestStart) {
			best = s.speaker
			bestDur = dur
			bestStart = s.start
		}
	}
	return overlapSpan{speaker: best, confidence: bestConf[best]}, bestDur
}

func withinSnapTolerance(total, dominantDur int64) bool {
	gap := total - dominantDur
	return gap <= SnapToleranceMS
}

// proportionalText allocates a substring of text proportional to frac,
// offset by the segment's position within the parent window. The cut
// points are the proportional rune offsets (truncated); they are not
// moved to whitespace or token boundaries.
func proportionalText(text string, frac float64, offsetMS, totalMS int64) string {
	if frac >= 0.999 {
		return text
	}
	runes := []rune(text)
	n := len(runes)
	startFrac := float64(offsetMS) / float64(totalMS)
	start := int(float64(n) * startFrac)
	end := int(float64(n) * (startFrac + frac))
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}

func overlap(aStart, aEnd, bStart, bEnd int64) int64 {
	lo := maxI64(aStart, bStart)
	hi := minI64(aEnd, bEnd)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
