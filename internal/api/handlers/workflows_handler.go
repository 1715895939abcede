package handlers

import (
	"net/http"

	"gorm.io/datatypes"

	"github.com/comfydeploy/engine/internal/api/types"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/services"
)

type WorkflowsHandler struct {
	registry services.RegistryService
	runs     services.RunService
}

func NewWorkflowsHandler(registry services.RegistryService, runs services.RunService) *WorkflowsHandler {
	return &WorkflowsHandler{registry: registry, runs: runs}
}

func (h *WorkflowsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.ListWorkflows(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *WorkflowsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.WorkflowCreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := h.registry.CreateWorkflow(r.Context(), identity.FromContext(r.Context()), &services.CreateWorkflowInput{
		Name:     req.Name,
		Snapshot: datatypes.JSON(req.Snapshot),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, wf)
}

func (h *WorkflowsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	wf, err := h.registry.GetWorkflow(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, wf)
}

func (h *WorkflowsHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.WorkflowVersionCreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.registry.CreateWorkflowVersion(r.Context(), identity.FromContext(r.Context()), id, datatypes.JSON(req.Snapshot))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, v)
}

func (h *WorkflowsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.runs.ListRuns(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}
