package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mbvlabs/seatguard/internal/seats"
	"github.com/mbvlabs/seatguard/internal/watchdog"
)

const defaultEventLimit = 50

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string         `json:"status"`
	Watchdog watchdog.State `json:"watchdog"`
	Strikes  int            `json:"strikes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.wd.Status()
	if err != nil {
		s.writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	resp := healthResponse{Status: "ok", Watchdog: st.State, Strikes: st.Strikes}
	code := http.StatusOK
	switch {
	case st.Strikes >= st.ResetThreshold:
		resp.Status = "escalated"
		code = http.StatusServiceUnavailable
	case st.Strikes > 0:
		resp.Status = "degraded"
	}
	s.writeJSON(w, r, code, resp)
}

func (s *Server) handleWatchdogStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.wd.Status()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) handleWatchdogEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events := s.wd.Events(limit)
	if events == nil {
		events = []watchdog.Event{}
	}
	s.writeJSON(w, r, http.StatusOK, events)
}

func (s *Server) handleWatchdogAction(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	var err error
	switch action {
	case "start":
		err = s.wd.Start()
	case "stop":
		err = s.wd.Stop()
	case "feed":
		err = s.wd.Feed()
	default:
		s.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "unknown action " + strconv.Quote(action)})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log.Info("watchdog_action", "action", action, "remote", r.RemoteAddr)
	st, err := s.wd.Status()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) handleSeats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.seats.Snapshot())
}

type seatUpdateRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSeatUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 8)
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "seat id must be 1-255"})
		return
	}

	var req seatUpdateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}
	status, err := seats.ParseStatus(req.Status)
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := s.seats.Update(uint8(id), status); err != nil {
		s.writeError(w, r, err)
		return
	}
	seat, _ := s.seats.Get(uint8(id))
	s.writeJSON(w, r, http.StatusOK, seat)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, watchdog.ErrInvalidHandle):
		code = http.StatusGone
	case errors.Is(err, watchdog.ErrLockAcquisition):
		code = http.StatusServiceUnavailable
	case errors.Is(err, seats.ErrInvalidSeat):
		code = http.StatusBadRequest
	case errors.Is(err, seats.ErrTableFull):
		code = http.StatusConflict
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("request_failed", "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, r, code, errorResponse{Error: err.Error()})
}
