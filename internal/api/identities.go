package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iot-bridge/internal/audit"
	"github.com/nerrad567/iot-bridge/internal/deviceclient"
	"github.com/nerrad567/iot-bridge/internal/identity"
)

// identityView is the API form of an identity. Secrets never leave the bridge.
type identityView struct {
	NodeID   string `json:"node_id"`
	DeviceID string `json:"device_id"`
	AuthMode string `json:"auth_mode"`
	CertFile string `json:"cert_file,omitempty"`
}

func viewOf(id deviceclient.Identity) identityView {
	v := identityView{NodeID: id.NodeID, DeviceID: id.DeviceID, AuthMode: "secret"}
	if id.Secret == "" {
		v.AuthMode = "certificate"
		v.CertFile = id.CertFile
	}
	return v
}

type putIdentityRequest struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret,omitempty"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
}

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.identities.List(r.Context())
	if err != nil {
		s.logger.Error("listing identities", "error", err)
		writeInternalError(w, "failed to list identities")
		return
	}

	views := make([]identityView, 0, len(ids))
	for _, id := range ids {
		views = append(views, viewOf(id))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identities": views,
		"count":      len(views),
	})
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := s.identities.LookupIdentity(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id))
}

// handlePutIdentity provisions or replaces the identity for a node.
// Running sessions keep the identity they logged in with.
func (s *Server) handlePutIdentity(w http.ResponseWriter, r *http.Request) {
	var req putIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := deviceclient.Identity{
		NodeID:   chi.URLParam(r, "nodeID"),
		DeviceID: req.DeviceID,
		Secret:   req.Secret,
		CertFile: req.CertFile,
		KeyFile:  req.KeyFile,
	}
	if err := s.identities.Register(r.Context(), id); err != nil {
		s.writeIdentityError(w, err)
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("identity provisioned", "node_id", id.NodeID, "device_id", id.DeviceID, "operator", claims.Subject)
	s.recordAudit(r, audit.ActionIdentityPut, audit.EntityIdentity, id.NodeID, map[string]any{
		"device_id": id.DeviceID,
		"auth_mode": viewOf(id).AuthMode,
	})
	writeJSON(w, http.StatusOK, viewOf(id))
}

func (s *Server) handleDeleteIdentity(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if err := s.identities.Unregister(r.Context(), nodeID); err != nil {
		s.writeIdentityError(w, err)
		return
	}
	s.recordAudit(r, audit.ActionIdentityDelete, audit.EntityIdentity, nodeID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeIdentityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		writeNotFound(w, "identity not found")
	case errors.Is(err, identity.ErrInvalid):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, identity.ErrExists):
		writeConflict(w, err.Error())
	default:
		s.logger.Error("identity store error", "error", err)
		writeInternalError(w, "identity store error")
	}
}
