package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meetinglens/transcriptd/internal/auth"
	"github.com/meetinglens/transcriptd/internal/log"
)

type startMeetingRequest struct {
	Title string `json:"title"`
}

type startMeetingResponse struct {
	MeetingID string `json:"meeting_id"`
}

func (s *Server) handleStartMeeting(w http.ResponseWriter, r *http.Request) {
	var req startMeetingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	meetingID, err := s.orch.Start(r.Context(), req.Title)
	if err != nil {
		log.WithComponentFromContext(r.Context(), "httpapi").Error().Err(err).Msg("start meeting failed")
		writeError(w, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, startMeetingResponse{MeetingID: meetingID})
}

func (s *Server) handleStopMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	summary, err := s.orch.Stop(r.Context(), meetingID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryDTO{
		MeetingID:        summary.MeetingID,
		DurationMS:       summary.DurationMS,
		AudioFilePath:    summary.AudioFilePath,
		NotesPersisted:   summary.NotesPersisted,
		TasksCreated:     summary.TasksCreated,
		DiarizationState: string(summary.DiarizationState),
	})
}

func (s *Server) handlePauseMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	if err := s.orch.Pause(r.Context(), meetingID); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResumeMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	if err := s.orch.Resume(r.Context(), meetingID); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type acknowledgeRequest struct {
	Actor string `json:"actor"`
}

func (s *Server) handleAcknowledgeTranscriptionOnly(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	var req acknowledgeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	actor := req.Actor
	// When the API is running under authentication, the authenticated
	// principal's ID is the actor of record; a caller cannot attribute
	// this acknowledgment to a different identity via the request body.
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		actor = p.ID
	}
	if err := s.orch.AcknowledgeTranscriptionOnly(r.Context(), meetingID, actor); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFeedAudio accepts a raw PCM chunk (16 kHz mono s16le, §6) in the
// request body and forwards it to the active session's diarizer and
// transcriber.
func (s *Server) handleFeedAudio(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	pcm, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := s.orch.FeedAudio(meetingID, pcm); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeSessionError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusNotFound, "session_not_found", err.Error())
}
