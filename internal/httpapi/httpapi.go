// Package httpapi exposes the daemon's state and commands over a local
// HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/trymwestin/mowerd/internal/core/mower"
	"github.com/trymwestin/mowerd/internal/core/rest"
	"github.com/trymwestin/mowerd/internal/core/session"
)

// Session is the slice of the session coordinator the server consumes.
type Session interface {
	State() session.ConnState
	GetState(mowerID string) (mower.State, bool)
	GetAllStates() map[string]mower.State
	Commands() session.CommandAPI
	Wake()
}

// Server is the HTTP API server.
type Server struct {
	sess Session
	log  *slog.Logger
	mux  *chi.Mux
}

// NewServer creates a new HTTP API server.
func NewServer(sess Session, log *slog.Logger) *Server {
	s := &Server{
		sess: sess,
		log:  log,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.Use(middleware.Recoverer)

	s.mux.Get("/api/status", s.handleGetStatus)
	s.mux.Get("/api/mowers", s.handleListMowers)
	s.mux.Post("/api/reconnect", s.handleReconnect)

	s.mux.Route("/api/mowers/{mowerID}", func(r chi.Router) {
		r.Get("/", s.handleGetMower)
		r.Post("/actions/resume-schedule", s.action(func(api session.CommandAPI, r *http.Request, id string) error {
			return api.ResumeSchedule(r.Context(), id)
		}))
		r.Post("/actions/pause", s.action(func(api session.CommandAPI, r *http.Request, id string) error {
			return api.Pause(r.Context(), id)
		}))
		r.Post("/actions/park-until-next-schedule", s.action(func(api session.CommandAPI, r *http.Request, id string) error {
			return api.ParkUntilNextSchedule(r.Context(), id)
		}))
		r.Post("/actions/park-until-further-notice", s.action(func(api session.CommandAPI, r *http.Request, id string) error {
			return api.ParkUntilFurtherNotice(r.Context(), id)
		}))
		r.Post("/actions/park", s.handlePark)
		r.Post("/actions/start", s.handleStart)
		r.Post("/actions/confirm-error", s.action(func(api session.CommandAPI, r *http.Request, id string) error {
			return api.ConfirmError(r.Context(), id)
		}))
		r.Post("/settings/cutting-height", s.handleSetCuttingHeight)
		r.Post("/settings/headlight", s.handleSetHeadlight)
		r.Post("/settings/calendar", s.handleSetCalendar)
		r.Post("/stay-out-zones/{zoneID}", s.handleSwitchStayOutZone)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeCommandError maps upstream REST failures onto local status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rest.ErrBadRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rest.ErrUnauthorized), errors.Is(err, rest.ErrForbidden):
		s.writeError(w, http.StatusBadGateway, "upstream rejected credentials: "+err.Error())
	default:
		s.writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Handlers ---

type statusResponse struct {
	SessionState string `json:"session_state"`
	Mowers       int    `json:"mowers"`
}

func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request) {
	states := s.sess.GetAllStates()
	s.writeJSON(w, statusResponse{
		SessionState: s.sess.State().String(),
		Mowers:       len(states),
	})
}

func (s *Server) handleListMowers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.sess.GetAllStates())
}

func (s *Server) handleGetMower(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "mowerID")
	st, ok := s.sess.GetState(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown mower: "+id)
		return
	}
	s.writeJSON(w, st)
}

func (s *Server) handleReconnect(w http.ResponseWriter, _ *http.Request) {
	s.sess.Wake()
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// action wraps a parameterless command into a handler.
func (s *Server) action(do func(api session.CommandAPI, r *http.Request, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "mowerID")
		if err := do(s.sess.Commands(), r, id); err != nil {
			s.writeCommandError(w, err)
			return
		}
		s.writeJSON(w, map[string]string{"status": "ok"})
	}
}

type durationBody struct {
	Minutes int `json:"minutes"`
}

func (s *Server) handlePark(w http.ResponseWriter, r *http.Request) {
	var body durationBody
	if err := s.readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if body.Minutes <= 0 {
		s.writeError(w, http.StatusBadRequest, "minutes must be > 0")
		return
	}
	id := chi.URLParam(r, "mowerID")
	if err := s.sess.Commands().Park(r.Context(), id, body.Minutes); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type startBody struct {
	Minutes    int    `json:"minutes"`
	WorkAreaID *int64 `json:"work_area_id,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if err := s.readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if body.Minutes <= 0 {
		s.writeError(w, http.StatusBadRequest, "minutes must be > 0")
		return
	}
	id := chi.URLParam(r, "mowerID")

	var err error
	if body.WorkAreaID != nil {
		err = s.sess.Commands().StartInWorkArea(r.Context(), id, *body.WorkAreaID, body.Minutes)
	} else {
		err = s.sess.Commands().Start(r.Context(), id, body.Minutes)
	}
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type cuttingHeightBody struct {
	Height     int    `json:"height"`
	WorkAreaID *int64 `json:"work_area_id,omitempty"`
}

func (s *Server) handleSetCuttingHeight(w http.ResponseWriter, r *http.Request) {
	var body cuttingHeightBody
	if err := s.readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	id := chi.URLParam(r, "mowerID")

	var err error
	if body.WorkAreaID != nil {
		err = s.sess.Commands().SetCuttingHeightWorkArea(r.Context(), id, *body.WorkAreaID, body.Height)
	} else {
		err = s.sess.Commands().SetCuttingHeight(r.Context(), id, body.Height)
	}
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type headlightBody struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetHeadlight(w http.ResponseWriter, r *http.Request) {
	var body headlightBody
	if err := s.readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if body.Mode == "" {
		s.writeError(w, http.StatusBadRequest, "mode is required")
		return
	}
	id := chi.URLParam(r, "mowerID")
	if err := s.sess.Commands().SetHeadlightMode(r.Context(), id, mower.HeadlightMode(body.Mode)); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type calendarBody struct {
	Tasks []mower.CalendarTask `json:"tasks"`
}

func (s *Server) handleSetCalendar(w http.ResponseWriter, r *http.Request) {
	var body calendarBody
	if err := s.readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if len(body.Tasks) == 0 {
		s.writeError(w, http.StatusBadRequest, "tasks is required")
		return
	}
	id := chi.URLParam(r, "mowerID")
	if err := s.sess.Commands().SetCalendar(r.Context(), id, body.Tasks); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

type zoneBody struct {
	Enable bool `json:"enable"`
}

func (s *Server) handleSwitchStayOutZone(w http.ResponseWriter, r *http.Request) {
	var body zoneBody
	if err := s.readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	id := chi.URLParam(r, "mowerID")
	zoneID := chi.URLParam(r, "zoneID")
	if err := s.sess.Commands().SwitchStayOutZone(r.Context(), id, zoneID, body.Enable); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}
