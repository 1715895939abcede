package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/comfydeploy/engine/internal/api/types"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/services"
)

type MachinesHandler struct {
	registry       services.RegistryService
	deployments    services.DeploymentService
	trustForwarded bool
}

// NewMachinesHandler builds the machine routes; trustForwarded enables
// X-Forwarded-Host/Proto when computing the access origin.
func NewMachinesHandler(registry services.RegistryService, deployments services.DeploymentService, trustForwarded bool) *MachinesHandler {
	return &MachinesHandler{registry: registry, deployments: deployments, trustForwarded: trustForwarded}
}

func (h *MachinesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.ListMachines(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *MachinesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.MachineCreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.registry.CreateMachine(r.Context(), identity.FromContext(r.Context()), &services.CreateMachineInput{
		Name:      req.Name,
		Endpoint:  req.Endpoint,
		Type:      models.MachineType(req.Type),
		AuthToken: req.AuthToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, m)
}

func (h *MachinesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.registry.DeleteMachine(r.Context(), identity.FromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Access mints a machine access token and returns the redirect URL into the machine.
func (h *MachinesHandler) Access(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.MachineAccessRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	access, err := h.deployments.MintMachineAccessToken(r.Context(), identity.FromContext(r.Context()), &services.MachineAccessInput{
		WorkflowVersionID: uuid.MustParse(req.WorkflowVersionID),
		MachineID:         id,
		Origin:            requestOrigin(r, h.trustForwarded),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, access)
}
