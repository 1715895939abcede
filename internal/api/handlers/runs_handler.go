package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/comfydeploy/engine/internal/api/types"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/services"
)

type RunsHandler struct {
	svc services.RunService
}

func NewRunsHandler(svc services.RunService) *RunsHandler { return &RunsHandler{svc: svc} }

func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := h.svc.GetRunsData(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data)
}

func (h *RunsHandler) Outputs(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	outputs, err := h.svc.GetRunsOutput(r.Context(), identity.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, outputs)
}

func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.RunCreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := h.svc.CreateRun(r.Context(), identity.FromContext(r.Context()), &services.CreateRunInput{
		WorkflowVersionID: uuid.MustParse(req.WorkflowVersionID),
		MachineID:         uuid.MustParse(req.MachineID),
		Origin:            models.RunOrigin(req.Origin),
		Inputs:            datatypes.JSON(req.Inputs),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, run)
}

// Update receives progress from the machine executing a run. The caller is
// the identity carried by the machine access token.
func (h *RunsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req types.RunUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	run, err := h.svc.UpdateRun(r.Context(), identity.FromContext(r.Context()), &services.RunUpdateInput{
		RunID:      uuid.MustParse(req.RunID),
		Status:     models.RunStatus(req.Status),
		OutputData: datatypes.JSON(req.OutputData),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, run)
}
