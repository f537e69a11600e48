package orchestrator

import (
	"context"
	"os"
	"time"

	"github.com/meetinglens/transcriptd/internal/aligner"
	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/diarizer"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/model"
)

// recoveryFeedChunkBytes bounds how much of the recorded WAV is fed to
// the recovery diarizer per Feed call.
const recoveryFeedChunkBytes = 32 * 1024

// recoveryTimeout bounds how long a single meeting's post-recording
// recovery pass may run before it is abandoned, §4.7.
const recoveryTimeout = 10 * time.Minute

// scheduleRecovery launches a best-effort background pass that re-runs
// diarization over the full recorded WAV and re-aligns the meeting's
// already-persisted rows against it, for sessions that ended degraded
// or unavailable, §4.7. It never blocks Stop's caller.
func (o *Orchestrator) scheduleRecovery(meetingID, recPath string, diarCfg diarizer.Config) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recoveryTimeout)
		defer cancel()

		outcome := "success"
		if err := o.runRecovery(ctx, meetingID, recPath, diarCfg); err != nil {
			outcome = "failure"
			log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("post-recording recovery failed")
		}
		o.audit.RecoveryAttempt(meetingID, outcome)
	}()
}

func (o *Orchestrator) runRecovery(ctx context.Context, meetingID, recPath string, diarCfg diarizer.Config) error {
	origRows, err := o.store.GetByMeetingPaginated(ctx, meetingID, 1_000_000, 0)
	if err != nil {
		return err
	}
	if len(origRows) == 0 {
		return nil
	}

	pcm, err := readPCMPayload(recPath)
	if err != nil {
		return err
	}

	d := diarizer.New(meetingID, diarCfg, o.bus)
	sub, err := o.bus.Subscribe(ctx, bus.TopicDiarizer)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	segments := make(chan model.DiarizationSegment, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C():
				if !ok {
					return
				}
				seg, ok := msg.(bus.DiarizerSegmentMsg)
				if !ok || seg.MeetingID != meetingID {
					continue
				}
				select {
				case segments <- model.DiarizationSegment{
					SpeakerID:           seg.SpeakerID,
					StartMS:             seg.StartMS,
					EndMS:               seg.EndMS,
					Confidence:          seg.Confidence,
					OverlappingSpeakers: seg.OverlappingSpeakers,
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for off := 0; off < len(pcm); off += recoveryFeedChunkBytes {
		end := off + recoveryFeedChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := d.Feed(pcm[off:end]); err != nil {
			break
		}
	}
	_ = d.Stop(ctx)

	// Give the subscriber goroutine a short grace window to drain the
	// final batch of segments the Stop call flushes.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	close(segments)

	a := aligner.New(meetingID, aligner.Config{})
	for seg := range segments {
		a.AddDiarizationSegment(seg)
	}

	var replacement []model.TranscriptRow
	for _, row := range origRows {
		rows := a.AlignFinal(row.Text, row.StartMS, row.EndMS, row.Confidence)
		replacement = append(replacement, rows...)
	}
	if len(replacement) == 0 {
		return nil
	}

	for _, row := range replacement {
		if _, err := o.store.ResolveSpeaker(ctx, meetingID, row.SpeakerID); err != nil {
			return err
		}
	}

	if err := o.store.DeleteByMeeting(ctx, meetingID); err != nil {
		return err
	}
	_, err = o.store.CreateBatch(ctx, replacement)
	return err
}

func readPCMPayload(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	const headerSize = 44
	if len(data) <= headerSize {
		return nil, nil
	}
	return data[headerSize:], nil
}
