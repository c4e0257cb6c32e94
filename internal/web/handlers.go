package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

const defaultSequenceLimit = 50

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleSequences returns the most recent sequences, newest last.
func (s *Server) handleSequences(w http.ResponseWriter, r *http.Request) {
	limit := defaultSequenceLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	seqs, err := s.ledger.Sequences(r.Context())
	if err != nil {
		s.logger.Error("Failed to list sequences", zap.Error(err))
		http.Error(w, "Failed to list sequences", http.StatusInternalServerError)
		return
	}
	if len(seqs) > limit {
		seqs = seqs[len(seqs)-limit:]
	}
	s.writeJSON(w, http.StatusOK, seqs)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.ledger.Alerts(r.Context())
	if err != nil {
		s.logger.Error("Failed to list alerts", zap.Error(err))
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

// handleStop requests a graceful stop; a second call forces a halt.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	halted := s.ctrl.Stop()
	mode := "graceful"
	if halted {
		mode = "halt"
	}
	s.logger.Warn("Stop requested over HTTP", zap.String("mode", mode), zap.String("remote", r.RemoteAddr))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"mode": mode})
}
