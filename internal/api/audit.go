package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/iot-bridge/internal/audit"
)

// auditTimeout bounds an audit write so a slow database never stalls a
// response that has already succeeded.
const auditTimeout = 2 * time.Second

// recordAudit stores an operator action. Failures are logged, never
// returned to the client.
func (s *Server) recordAudit(r *http.Request, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}

	operator := entityID
	if claims := claimsFromContext(r.Context()); claims != nil {
		operator = claims.Subject
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	defer cancel()

	err := s.audit.Create(ctx, &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Operator:   operator,
		Details:    details,
	})
	if err != nil {
		s.logger.Error("recording audit entry failed", "action", action, "error", err)
	}
}

// handleListAudit returns audit entries, newest first. Query parameters
// action, entity_type, entity_id, operator, limit and offset filter the page.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, audit.Page{Entries: []audit.Entry{}})
		return
	}

	q := r.URL.Query()
	f := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Operator:   q.Get("operator"),
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
	}

	page, err := s.audit.List(r.Context(), f)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, page)
}
