package handlers

import (
	"net/http"

	"github.com/comfydeploy/engine/internal/api/types"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/services"
)

// RegistryHandler serves the checkpoint, model and API key listings.
type RegistryHandler struct {
	registry services.RegistryService
}

func NewRegistryHandler(registry services.RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

func (h *RegistryHandler) Checkpoints(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.ListCheckpoints(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *RegistryHandler) Models(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.ListModels(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *RegistryHandler) APIKeys(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.ListAPIKeys(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *RegistryHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req types.APIKeyCreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	key, err := h.registry.CreateAPIKey(r.Context(), identity.FromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, key)
}

func (h *RegistryHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.registry.RevokeAPIKey(r.Context(), identity.FromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
