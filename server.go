package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"i4.energy/across/loragw/modem"
)

// uplinkService is the part of the gateway the HTTP surface needs.
type uplinkService interface {
	Enqueue(job UplinkJob) (string, error)
	Status() (GatewayStatus, error)
	LastDownlink() *modem.DownlinkMessage
}

// Server exposes the gateway over HTTP.
type Server struct {
	Logger  logrus.FieldLogger
	Service uplinkService
	// Token, when set, is required as an Authorization bearer token on
	// everything except the liveness probe.
	Token string
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Post("/uplink", s.handleUplink)
		r.Get("/status", s.handleStatus)
		r.Get("/downlink", s.handleDownlink)
	})

	return r
}

// bearerAuth rejects requests without the configured token. With no
// token configured it passes everything through.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.Token {
				s.sendError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
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

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleUplink queues a payload for transmission.
func (s *Server) handleUplink(w http.ResponseWriter, r *http.Request) {
	var job UplinkJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if job.Payload == "" {
		s.sendError(w, "the 'payload' field is required", http.StatusBadRequest)
		return
	}

	id, err := s.Service.Enqueue(job)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			s.sendError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.WithFields(logrus.Fields{
		"id":     id,
		"length": len(job.Payload),
	}).Info("uplink accepted")
	s.sendJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "id": id})
}

// handleStatus reports identity, join state, module status and queue
// depth.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status, err := s.Service.Status()
	if err != nil {
		s.Logger.WithError(err).Error("status inquiry failed")
		s.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.sendJSON(w, http.StatusOK, status)
}

// handleDownlink returns the most recent downlink, or 204 when none
// arrived yet.
func (s *Server) handleDownlink(w http.ResponseWriter, _ *http.Request) {
	msg := s.Service.LastDownlink()
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"type":    msg.MsgType,
		"port":    msg.Port,
		"length":  msg.Length,
		"payload": msg.Payload,
	})
}
