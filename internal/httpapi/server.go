package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/audio"
	"github.com/mirelabs/mira/internal/config"
	"github.com/mirelabs/mira/internal/observability"
	"github.com/mirelabs/mira/internal/session"
	"github.com/mirelabs/mira/internal/voice"
)

// VoicePipeline is the control surface the API drives.
type VoicePipeline interface {
	Start(ctx context.Context, callerID string) error
	Stop() error
	Say(text string) (int64, error)
	Active() bool
	Status() voice.Status
	Subscribe() (<-chan voice.Status, func())
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	pipeline VoicePipeline
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	currentID string
}

func New(cfg config.Config, sessions *session.Manager, pipeline VoicePipeline, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		pipeline: pipeline,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser connections may watch the
				// session unless explicitly opened up. Anything else
				// could observe live transcripts.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/voice/start", s.handleStart)
	r.Post("/v1/voice/stop", s.handleStop)
	r.Post("/v1/voice/say", s.handleSay)
	r.Get("/v1/voice/status", s.handleStatus)
	r.Get("/v1/voice/events", s.handleEvents)
	r.Get("/v1/voice/session/{id}", s.handleGetSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"pipeline_active": s.pipeline.Active(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

type startRequest struct {
	CallerID string `json:"caller_id"`
	VoiceID  string `json:"voice_id"`
}

type startResponse struct {
	SessionID       string         `json:"session_id"`
	CallerID        string         `json:"caller_id"`
	Status          session.Status `json:"status"`
	VoiceID         string         `json:"voice_id"`
	StartedAt       time.Time      `json:"started_at"`
	InactivityTTLMS int64          `json:"inactivity_ttl_ms"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.CallerID) == "" {
		req.CallerID = "anonymous"
	}
	if strings.TrimSpace(req.VoiceID) == "" {
		req.VoiceID = s.cfg.TTSVoiceID
	}

	if err := s.pipeline.Start(r.Context(), req.CallerID); err != nil {
		switch {
		case errors.Is(err, voice.ErrNotEntitled):
			respondError(w, http.StatusForbidden, "not_entitled", err.Error())
		case errors.Is(err, voice.ErrPipelineActive):
			respondError(w, http.StatusConflict, "session_active", err.Error())
		case errors.Is(err, audio.ErrPermissionDenied):
			respondError(w, http.StatusInternalServerError, "microphone_denied", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "start_failed", err.Error())
		}
		return
	}

	sess := s.sessions.Create(req.CallerID, req.VoiceID)
	s.mu.Lock()
	s.currentID = sess.ID
	s.mu.Unlock()

	respondJSON(w, http.StatusCreated, startResponse{
		SessionID:       sess.ID,
		CallerID:        sess.CallerID,
		Status:          sess.Status,
		VoiceID:         sess.VoiceID,
		StartedAt:       sess.StartedAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.pipeline.Stop(); err != nil {
		respondError(w, http.StatusConflict, "no_active_session", err.Error())
		return
	}

	s.mu.Lock()
	id := s.currentID
	s.currentID = ""
	s.mu.Unlock()

	if id != "" {
		if sess, err := s.sessions.End(id); err == nil {
			respondJSON(w, http.StatusOK, sess)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

type sayRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSay(w http.ResponseWriter, r *http.Request) {
	var req sayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	seq, err := s.pipeline.Say(req.Text)
	if err != nil {
		respondError(w, http.StatusConflict, "no_active_session", err.Error())
		return
	}
	s.touchCurrent()
	respondJSON(w, http.StatusAccepted, map[string]any{"seq": seq})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	id := s.currentID
	s.mu.Unlock()

	resp := map[string]any{
		"pipeline": s.pipeline.Status(),
	}
	if id != "" {
		if sess, err := s.sessions.Get(id); err == nil {
			resp["session"] = sess
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// handleEvents streams pipeline status snapshots over a websocket until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates, cancel := s.pipeline.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	// Reader exists only to notice the client going away.
	go func() {
		defer stop()
		conn.SetReadLimit(1 << 10)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(status); err != nil {
				return
			}
		}
	}
}

// WatchPipeline mirrors pipeline activity into the session record: any status
// change counts as activity, completed turns and reconnects are tallied.
func (s *Server) WatchPipeline(ctx context.Context) {
	updates, cancel := s.pipeline.Subscribe()
	defer cancel()

	var prev voice.SessionState
	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			s.mu.Lock()
			id := s.currentID
			s.mu.Unlock()
			if id == "" {
				prev = status.State
				continue
			}

			switch {
			case status.State == voice.StateReconnecting && prev != voice.StateReconnecting:
				_ = s.sessions.RecordReconnect(id)
			case status.State == voice.StateListening && prev == voice.StateSpeaking:
				_ = s.sessions.RecordTurn(id)
			default:
				_ = s.sessions.Touch(id)
			}
			prev = status.State
		}
	}
}

func (s *Server) touchCurrent() {
	s.mu.Lock()
	id := s.currentID
	s.mu.Unlock()
	if id != "" {
		_ = s.sessions.Touch(id)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
