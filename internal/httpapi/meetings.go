package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/meetinglens/transcriptd/internal/model"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	offset = 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPageLimit {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// handleListMeetings returns a paginated list of meetings, newest first.
func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	meetings, err := s.st.ListMeetings(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_meetings_failed", err.Error())
		return
	}
	dtos := make([]meetingDTO, len(meetings))
	for i, m := range meetings {
		dtos[i] = toMeetingDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// handleGetMeeting returns one meeting's current row, serving both
// /meetings/{id} and /meetings/{id}/status, §4.10's Summary counterpart
// for a meeting that is still open or already stopped.
func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	m, err := s.st.GetMeeting(r.Context(), meetingID)
	if err != nil {
		writeError(w, http.StatusNotFound, "meeting_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toMeetingDTO(m))
}

// handleGetTranscript returns a paginated, start_ms-ordered page of
// transcript rows for one meeting, §4.6.
func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	limit, offset := pageParams(r)
	rows, err := s.st.GetByMeetingPaginated(r.Context(), meetingID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_transcript_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTranscriptRowDTOs(rows))
}

// handleSearchInMeeting runs a full-text search scoped to one meeting, §4.6.
func (s *Server) handleSearchInMeeting(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q is required")
		return
	}
	rows, err := s.st.SearchInMeeting(r.Context(), meetingID, q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTranscriptRowDTOs(rows))
}

// handleSearchAll runs a full-text search across every meeting, §4.6,
// ordered by meeting start_ms.
func (s *Server) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q is required")
		return
	}
	rows, err := s.st.SearchAll(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTranscriptRowDTOs(rows))
}

// handleGetNotes returns a meeting's InsightNotes, optionally filtered
// by kind, §3/§4.8.
func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	kind := model.InsightKind(r.URL.Query().Get("kind"))
	notes, err := s.st.GetNotesByMeeting(r.Context(), meetingID, kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_notes_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toInsightNoteDTOs(notes))
}

// handleGetTasks returns a meeting's action-item Tasks, §3/§4.8.
func (s *Server) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	tasks, err := s.st.GetTasksByMeeting(r.Context(), meetingID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_tasks_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTOs(tasks))
}

// handleGetFailures returns a meeting's FailureEvent history, §3/§7.
func (s *Server) handleGetFailures(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	evs, err := s.st.GetFailureEventsByMeeting(r.Context(), meetingID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_failures_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toFailureEventDTOs(evs))
}
