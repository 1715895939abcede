package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/comfydeploy/engine/internal/api/types"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/services"
)

type DeploymentsHandler struct {
	svc services.DeploymentService
}

func NewDeploymentsHandler(svc services.DeploymentService) *DeploymentsHandler {
	return &DeploymentsHandler{svc: svc}
}

func (h *DeploymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	workflowID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.svc.ListDeployments(r.Context(), identity.FromContext(r.Context()), workflowID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

// Upsert points an environment slot of the workflow at a version and machine.
func (h *DeploymentsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	workflowID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.DeploymentUpsertRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := h.svc.UpsertDeployment(r.Context(), identity.FromContext(r.Context()), &services.UpsertDeploymentInput{
		WorkflowID:        workflowID,
		WorkflowVersionID: uuid.MustParse(req.WorkflowVersionID),
		MachineID:         uuid.MustParse(req.MachineID),
		Environment:       models.Environment(req.Environment),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, types.MessageResponse{Message: msg})
}
