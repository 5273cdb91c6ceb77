package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iot-bridge/internal/audit"
)

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.sessions.Sessions()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].DeviceID < sessions[j].DeviceID })

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "connID")
	sess, ok := s.sessions.Session(connID)
	if !ok {
		writeNotFound(w, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

// handleDeleteSession drops the session and closes the device's connection.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	connID := chi.URLParam(r, "connID")
	sess, ok := s.sessions.Session(connID)
	if !ok {
		writeNotFound(w, "session not found")
		return
	}

	s.sessions.RemoveSession(connID)
	if err := sess.Disconnect(); err != nil {
		s.logger.Debug("closing device connection", "conn_id", connID, "error", err)
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("session dropped by operator",
		"conn_id", connID,
		"device_id", sess.DeviceID,
		"operator", claims.Subject,
	)
	s.recordAudit(r, audit.ActionSessionDrop, audit.EntitySession, connID, map[string]any{
		"device_id": sess.DeviceID,
		"node_id":   sess.NodeID,
	})
	w.WriteHeader(http.StatusNoContent)
}
