package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Quantum-Fiend/PolyAutomate/internal/audit"
	"github.com/Quantum-Fiend/PolyAutomate/internal/plugin"
)

// handleListPlugins returns the plugin catalogue.
// The catalogue is shared across all users.
func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.plugins.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plugins": plugins,
		"count":   len(plugins),
	})
}

// handleCreatePlugin registers a new plugin in the catalogue.
func (s *Server) handleCreatePlugin(w http.ResponseWriter, r *http.Request) {
	var p plugin.Plugin
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.plugins.Create(r.Context(), &p); err != nil {
		writeDomainError(w, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		Action:     audit.ActionPluginCreate,
		EntityType: audit.EntityPlugin,
		EntityID:   p.ID,
		UserID:     userIDFrom(r.Context()),
		Details:    map[string]any{"name": p.Name, "plugin_type": p.Type},
	})

	writeJSON(w, http.StatusCreated, p)
}

// handleGetPlugin returns a single plugin by ID.
func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := s.plugins.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleUpdatePlugin applies a partial update to a plugin.
func (s *Server) handleUpdatePlugin(w http.ResponseWriter, r *http.Request) {
	var patch plugin.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	pluginID := chi.URLParam(r, "id")
	p, err := s.plugins.Update(r.Context(), pluginID, &patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		Action:     audit.ActionPluginUpdate,
		EntityType: audit.EntityPlugin,
		EntityID:   p.ID,
		UserID:     userIDFrom(r.Context()),
	})

	writeJSON(w, http.StatusOK, p)
}

// handleDeletePlugin removes a plugin from the catalogue.
func (s *Server) handleDeletePlugin(w http.ResponseWriter, r *http.Request) {
	pluginID := chi.URLParam(r, "id")

	if err := s.plugins.Delete(r.Context(), pluginID); err != nil {
		writeDomainError(w, err)
		return
	}

	s.audit.Record(r.Context(), &audit.Entry{
		Action:     audit.ActionPluginDelete,
		EntityType: audit.EntityPlugin,
		EntityID:   pluginID,
		UserID:     userIDFrom(r.Context()),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": pluginID,
	})
}
