// HTTP handlers for the settings surface consumed by the extension UI
// (popup, options page, in-page chatbot).
//
// DESIGN: Each section gets a GET projection and a PATCH/PUT mutator
// mapping 1:1 onto the settings service operations. Mutations broadcast
// a settings_changed event so other extension contexts can refresh.
// Secrets travel decrypted over the loopback-only listener; they are
// never written to the log.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/deskpilot/settings-gateway/internal/settings"
)

func (s *Server) writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": msg, "type": "settings_error"},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// handleHealth probes the store through a throwaway document read. A
// failing store is absorbed into defaults, so the probe still answers
// ok; the failure surfaces in the log.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.svc.GetAll(r.Context())
	health := map[string]any{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}

func (s *Server) handleGetGeneral(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.svc.GetGeneral(r.Context()))
}

func (s *Server) handlePatchGeneral(w http.ResponseWriter, r *http.Request) {
	var patch settings.GeneralPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := s.svc.UpdateGeneral(r.Context(), patch); err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.hub.Broadcast("general")
	s.writeJSON(w, s.svc.GetGeneral(r.Context()))
}

func (s *Server) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.svc.GetFeatures(r.Context()))
}

func (s *Server) handlePatchFeatures(w http.ResponseWriter, r *http.Request) {
	var patch settings.FeaturesPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := s.svc.UpdateFeatures(r.Context(), patch); err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.hub.Broadcast("features")
	s.writeJSON(w, s.svc.GetFeatures(r.Context()))
}

func (s *Server) handleGetAIModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.svc.GetAIModels(r.Context()))
}

func (s *Server) handlePatchAIModels(w http.ResponseWriter, r *http.Request) {
	var patch settings.AIModelsPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := s.svc.UpdateAIModels(r.Context(), patch); err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.hub.Broadcast("aiModels")
	s.writeJSON(w, s.svc.GetAIModels(r.Context()))
}

type sidebarWidthBody struct {
	SidebarWidth int `json:"sidebarWidth"`
}

func (s *Server) handleGetSidebarWidth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, sidebarWidthBody{SidebarWidth: s.svc.GetSidebarWidth(r.Context())})
}

func (s *Server) handlePatchSidebarWidth(w http.ResponseWriter, r *http.Request) {
	var body sidebarWidthBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.svc.UpdateSidebarWidth(r.Context(), body.SidebarWidth); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.hub.Broadcast("sidebarWidth")
	s.writeJSON(w, sidebarWidthBody{SidebarWidth: s.svc.GetSidebarWidth(r.Context())})
}

func (s *Server) handleGetBacklogs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.svc.GetBacklogs(r.Context()))
}

func (s *Server) handlePutBacklogs(w http.ResponseWriter, r *http.Request) {
	var inputs []settings.BacklogInput
	if !decodeBody(w, r, &inputs) {
		return
	}
	if err := s.svc.UpdateBacklogs(r.Context(), inputs); err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.hub.Broadcast("backlog")
	s.writeJSON(w, s.svc.GetBacklogs(r.Context()))
}

func (s *Server) handleAddBacklog(w http.ResponseWriter, r *http.Request) {
	var input settings.BacklogInput
	if !decodeBody(w, r, &input) {
		return
	}
	id, err := s.svc.AddBacklog(r.Context(), input)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.hub.Broadcast("backlog")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (s *Server) handleRemoveBacklog(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing backlog id", http.StatusBadRequest)
		return
	}
	if err := s.svc.RemoveBacklog(r.Context(), id); err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.hub.Broadcast("backlog")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetAll(r.Context()); err != nil {
		s.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.hub.Broadcast("all")
	s.writeJSON(w, s.svc.GetAll(r.Context()))
}
