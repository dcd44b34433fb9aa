package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"i4.energy/across/kimgw/at"
	"i4.energy/across/kimgw/kim"
)

// Radio is the part of *kim.Module the HTTP gateway uses.
type Radio interface {
	IsSleeping() bool
	SetAwake(ctx context.Context, awake bool) (sleeping bool, err error)
	ID() (string, error)
	SerialNumber() (string, error)
	Firmware() (string, error)
	Power() (string, error)
	FrequencyOffset() (string, error)
	Format() (string, error)
	Transmit(data string) error
}

var _ Radio = (*kim.Module)(nil)

// Server handles incoming HTTP requests for interacting with the
// configured KIM module
type Server struct {
	Logger *slog.Logger
	Radio  Radio
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("POST /messages", s.handleMessage)
	mux.HandleFunc("POST /power", s.handlePower)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps driver errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, at.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, kim.ErrSleeping):
		return http.StatusConflict
	case errors.Is(err, kim.ErrWakeFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, kim.ErrModule),
		errors.Is(err, kim.ErrUnknownResponse),
		errors.Is(err, kim.ErrTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type statusResponse struct {
	State string `json:"state"`
}

func (s *Server) state() statusResponse {
	if s.Radio.IsSleeping() {
		return statusResponse{State: kim.Sleeping.String()}
	}
	return statusResponse{State: kim.Awake.String()}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.state())
}

// handleInfo reads the module identity and radio settings
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	type InfoResponse struct {
		ID           string `json:"id"`
		SerialNumber string `json:"serial_number"`
		Firmware     string `json:"firmware"`
		Power        string `json:"power"`
		Frequency    string `json:"frequency"`
		Format       string `json:"format"`
	}

	var resp InfoResponse
	fields := []struct {
		name  string
		query func() (string, error)
		dst   *string
	}{
		{"id", s.Radio.ID, &resp.ID},
		{"serial_number", s.Radio.SerialNumber, &resp.SerialNumber},
		{"firmware", s.Radio.Firmware, &resp.Firmware},
		{"power", s.Radio.Power, &resp.Power},
		{"frequency", s.Radio.FrequencyOffset, &resp.Frequency},
		{"format", s.Radio.Format, &resp.Format},
	}
	for _, f := range fields {
		reply, err := f.query()
		if err != nil {
			s.Logger.Error("Failed to read module info", "error", err, "field", f.name)
			s.sendError(w, err.Error(), statusFor(err))
			return
		}
		*f.dst = at.Value(reply)
	}

	s.sendJSON(w, resp)
}

// handleMessage processes incoming HTTP POST requests to transmit a message
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	type MessageRequest struct {
		Data string `json:"data"`
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Data == "" {
		s.sendError(w, "'data' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Radio.Transmit(req.Data); err != nil {
		s.Logger.Error("Failed to transmit message", "error", err, "length", len(req.Data))
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Message transmitted", "length", len(req.Data))
	w.WriteHeader(http.StatusOK)
}

// handlePower wakes the module up or puts it to sleep
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	type PowerRequest struct {
		Awake *bool `json:"awake"`
	}

	var req PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Awake == nil {
		s.sendError(w, "'awake' field is required", http.StatusBadRequest)
		return
	}

	if _, err := s.Radio.SetAwake(r.Context(), *req.Awake); err != nil {
		s.Logger.Error("Failed to change power state", "error", err, "awake", *req.Awake)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.sendJSON(w, s.state())
}
