// Package httpapi is the local control/playback HTTP surface around
// the Session Orchestrator (C10) and the Transcript Store (C6): start/
// stop/pause/resume a meeting, feed audio, read back transcripts and
// insights, and serve the finalized recording with Range support.
package httpapi

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/meetinglens/transcriptd/internal/config"
	"github.com/meetinglens/transcriptd/internal/health"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/orchestrator"
	"github.com/meetinglens/transcriptd/internal/ratelimit"
	"github.com/meetinglens/transcriptd/internal/store"
	"golang.org/x/time/rate"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the API
// needs, declared here so handlers depend on exactly the methods they
// call rather than the whole orchestrator surface.
type Orchestrator interface {
	Start(ctx context.Context, title string) (string, error)
	FeedAudio(meetingID string, pcm []byte) error
	Pause(ctx context.Context, meetingID string) error
	Resume(ctx context.Context, meetingID string) error
	AcknowledgeTranscriptionOnly(ctx context.Context, meetingID, actor string) error
	Stop(ctx context.Context, meetingID string) (orchestrator.Summary, error)
}

// Server wires the orchestrator and store to a chi router under the
// configured auth and rate-limit middleware, mirroring the donor's
// dependency-aggregation constructor style.
type Server struct {
	orch    Orchestrator
	st      *store.Store
	health  *health.Manager
	cfg     config.APIConfig
	recDir  string
	limiter *ratelimit.Limiter
}

// NewServer constructs a Server.
func NewServer(orch Orchestrator, st *store.Store, healthMgr *health.Manager, cfg config.APIConfig, recordingsDir string) *Server {
	return &Server{
		orch:    orch,
		st:      st,
		health:  healthMgr,
		cfg:     cfg,
		recDir:  recordingsDir,
		limiter: ratelimit.New(ratelimitConfigFrom(cfg)),
	}
}

func ratelimitConfigFrom(cfg config.APIConfig) ratelimit.Config {
	rl := ratelimit.DefaultConfig()
	if cfg.RateLimitRPS > 0 {
		rl.PerIPRate = rate.Limit(cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst > 0 {
		rl.PerIPBurst = cfg.RateLimitBurst
	}
	return rl
}

// Router builds the chi.Router serving every control and playback
// route, §6/§12.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(log.Middleware())
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	rControl := r.With(s.rateLimitMiddleware("control"), s.authMiddleware)
	rControl.Post("/meetings", s.handleStartMeeting)
	rControl.Get("/meetings", s.handleListMeetings)
	rControl.Get("/meetings/{meetingID}", s.handleGetMeeting)
	rControl.Get("/meetings/{meetingID}/status", s.handleGetMeeting)
	rControl.Post("/meetings/{meetingID}/stop", s.handleStopMeeting)
	rControl.Post("/meetings/{meetingID}/pause", s.handlePauseMeeting)
	rControl.Post("/meetings/{meetingID}/resume", s.handleResumeMeeting)
	rControl.Post("/meetings/{meetingID}/acknowledge-transcription-only", s.handleAcknowledgeTranscriptionOnly)
	rControl.Post("/meetings/{meetingID}/audio", s.handleFeedAudio)

	rControl.Get("/meetings/{meetingID}/transcript", s.handleGetTranscript)
	rControl.Get("/meetings/{meetingID}/search", s.handleSearchInMeeting)
	rControl.Get("/search", s.handleSearchAll)
	rControl.Get("/meetings/{meetingID}/notes", s.handleGetNotes)
	rControl.Get("/meetings/{meetingID}/tasks", s.handleGetTasks)
	rControl.Get("/meetings/{meetingID}/failures", s.handleGetFailures)

	rPlayback := r.With(s.rateLimitMiddleware("playback"), s.authMiddleware)
	rPlayback.Get("/meetings/{meetingID}/recording", s.handlePlayback)
	rPlayback.Head("/meetings/{meetingID}/recording", s.handlePlayback)

	return r
}
