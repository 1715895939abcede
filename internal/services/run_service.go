package services

import (
	"context"
	"encoding/json"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/comfydeploy/engine/internal/billing"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/repository"
	"github.com/comfydeploy/engine/internal/storage"
	appErr "github.com/comfydeploy/engine/pkg/errors"
	"github.com/comfydeploy/engine/pkg/logger"
)

// RunService creates runs, records machine progress on them and reads them
// back with their outputs. Outputs are unpaginated.
type RunService interface {
	// CreateRun queues a run of a workflow version on a machine, both owned by the caller.
	CreateRun(ctx context.Context, caller identity.Identity, input *CreateRunInput) (*models.WorkflowRun, error)
	// UpdateRun applies a machine's progress report: an output, a status change, or both.
	UpdateRun(ctx context.Context, caller identity.Identity, input *RunUpdateInput) (*models.WorkflowRun, error)
	// GetRunsData returns the run with its outputs loaded in the same fetch.
	GetRunsData(ctx context.Context, caller identity.Identity, runID uuid.UUID) (*RunData, error)
	// GetRunsOutput returns only the outputs of a run.
	GetRunsOutput(ctx context.Context, caller identity.Identity, runID uuid.UUID) ([]RunOutputView, error)
	ListRuns(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.WorkflowRun, error)
}

type CreateRunInput struct {
	WorkflowVersionID uuid.UUID
	MachineID         uuid.UUID
	Origin            models.RunOrigin
	Inputs            datatypes.JSON
}

type RunUpdateInput struct {
	RunID      uuid.UUID
	Status     models.RunStatus
	OutputData datatypes.JSON
}

// UsageReporter meters finished runs against the owner's subscription.
type UsageReporter interface {
	ReportUsage(ctx context.Context, owner identity.Identity, quantity int64) (*billing.UsageRecord, error)
}

type RunData struct {
	models.WorkflowRun
	Outputs []RunOutputView `json:"outputs"`
}

type RunOutputView struct {
	models.RunOutput
	Files []OutputFile `json:"files,omitempty"`
}

// OutputFile is a file referenced by an output, with its download URL.
type OutputFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// fileGroups are the output keys whose entries reference stored files.
var fileGroups = []string{"images", "gifs", "files"}

type runService struct {
	runRepo      repository.RunRepository
	workflowRepo repository.WorkflowRepository
	machineRepo  repository.MachineRepository
	objects      *storage.Locator
	usage        UsageReporter
}

// NewRunService builds the RunService. usage may be nil when billing is not configured.
func NewRunService(
	runRepo repository.RunRepository,
	workflowRepo repository.WorkflowRepository,
	machineRepo repository.MachineRepository,
	objects *storage.Locator,
	usage UsageReporter,
) RunService {
	return &runService{
		runRepo:      runRepo,
		workflowRepo: workflowRepo,
		machineRepo:  machineRepo,
		objects:      objects,
		usage:        usage,
	}
}

var _ RunService = (*runService)(nil)

func (s *runService) CreateRun(ctx context.Context, caller identity.Identity, input *CreateRunInput) (*models.WorkflowRun, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	origin := input.Origin
	if origin == "" {
		origin = models.OriginAPI
	}
	if !origin.Valid() {
		return nil, appErr.Validation("origin", "origin must be one of [manual api public-share]")
	}

	var version models.WorkflowVersion
	if err := s.workflowRepo.GetVersion(ctx, input.WorkflowVersionID, &version); err != nil {
		return nil, err
	}
	var wf models.Workflow
	if err := s.workflowRepo.GetScoped(ctx, caller, version.WorkflowID, &wf); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.NotFound("workflow version")
		}
		return nil, err
	}
	var machine models.Machine
	if err := s.machineRepo.GetScoped(ctx, caller, input.MachineID, &machine); err != nil {
		return nil, err
	}
	if machine.Disabled {
		return nil, appErr.New(appErr.CodeConflict, "machine is disabled")
	}

	run := &models.WorkflowRun{
		WorkflowID:        wf.ID,
		WorkflowVersionID: &version.ID,
		MachineID:         &machine.ID,
		Status:            models.RunNotStarted,
		Origin:            origin,
		Inputs:            input.Inputs,
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}
	logger.L().Info("run created",
		zap.String("run_id", run.ID.String()),
		zap.String("workflow_id", wf.ID.String()),
		zap.String("machine_id", machine.ID.String()),
		zap.String("origin", string(origin)),
	)
	return run, nil
}

func (s *runService) UpdateRun(ctx context.Context, caller identity.Identity, input *RunUpdateInput) (*models.WorkflowRun, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	if input.Status == "" && len(input.OutputData) == 0 {
		return nil, appErr.Validation("status", "status or output_data is required")
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, appErr.Validation("status", "unknown run status")
	}
	if len(input.OutputData) > 0 && !json.Valid(input.OutputData) {
		return nil, appErr.Validation("output_data", "output_data must be valid json")
	}

	var run models.WorkflowRun
	if err := s.runRepo.GetScoped(ctx, caller, input.RunID, false, &run); err != nil {
		return nil, err
	}
	if len(input.OutputData) > 0 {
		if _, err := s.runRepo.AppendOutput(ctx, run.ID, input.OutputData); err != nil {
			return nil, err
		}
	}
	if input.Status == "" {
		return &run, nil
	}

	updated, err := s.runRepo.UpdateStatus(ctx, run.ID, input.Status)
	if err != nil {
		return nil, err
	}
	logger.L().Info("run status updated", zap.String("run_id", run.ID.String()), zap.String("status", string(updated.Status)))
	if updated.Status.Terminal() {
		s.reportUsage(ctx, caller, updated)
	}
	return updated, nil
}

// reportUsage meters a finished run in whole seconds, at least one. Billing
// failures are logged and never fail the update.
func (s *runService) reportUsage(ctx context.Context, owner identity.Identity, run *models.WorkflowRun) {
	if s.usage == nil {
		return
	}
	seconds := billableSeconds(run)
	if _, err := s.usage.ReportUsage(ctx, owner, seconds); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			logger.L().Debug("run usage not metered, no subscription", zap.String("run_id", run.ID.String()))
			return
		}
		logger.L().Error("report run usage failed", zap.String("run_id", run.ID.String()), zap.Int64("seconds", seconds), zap.Error(err))
	}
}

func billableSeconds(run *models.WorkflowRun) int64 {
	if run.EndedAt == nil {
		return 1
	}
	start := run.CreatedAt
	if run.StartedAt != nil {
		start = *run.StartedAt
	}
	secs := int64(math.Ceil(run.EndedAt.Sub(start).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func (s *runService) GetRunsData(ctx context.Context, caller identity.Identity, runID uuid.UUID) (*RunData, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	logger.L().Debug("get run data", zap.String("run_id", runID.String()), zap.String("user_id", caller.UserID))

	var run models.WorkflowRun
	if err := s.runRepo.GetScoped(ctx, caller, runID, true, &run); err != nil {
		return nil, err
	}
	outputs := s.expand(run.ID, run.Outputs)
	run.Outputs = nil
	return &RunData{WorkflowRun: run, Outputs: outputs}, nil
}

func (s *runService) GetRunsOutput(ctx context.Context, caller identity.Identity, runID uuid.UUID) ([]RunOutputView, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	logger.L().Debug("get run outputs", zap.String("run_id", runID.String()), zap.String("user_id", caller.UserID))

	var run models.WorkflowRun
	if err := s.runRepo.GetScoped(ctx, caller, runID, false, &run); err != nil {
		return nil, err
	}
	outputs, err := s.runRepo.ListOutputs(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return s.expand(run.ID, outputs), nil
}

func (s *runService) ListRuns(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.WorkflowRun, error) {
	return s.runRepo.ListByWorkflow(ctx, caller, workflowID)
}

func (s *runService) expand(runID uuid.UUID, outputs []models.RunOutput) []RunOutputView {
	views := make([]RunOutputView, 0, len(outputs))
	for _, o := range outputs {
		views = append(views, RunOutputView{RunOutput: o, Files: s.files(runID, o)})
	}
	return views
}

// files lists the stored files an output references. Outputs that are not
// objects, or storage that is not configured, yield no files.
func (s *runService) files(runID uuid.UUID, o models.RunOutput) []OutputFile {
	if !s.objects.Configured() || len(o.Data) == 0 {
		return nil
	}
	var groups map[string]json.RawMessage
	if err := json.Unmarshal(o.Data, &groups); err != nil {
		return nil
	}

	var out []OutputFile
	for _, g := range fileGroups {
		raw, ok := groups[g]
		if !ok {
			continue
		}
		var entries []struct {
			Filename string `json:"filename"`
		}
		if err := json.Unmarshal(raw, &entries); err != nil {
			logger.L().Debug("skip malformed output group", zap.String("group", g), zap.String("output_id", o.ID.String()))
			continue
		}
		for _, e := range entries {
			if e.Filename == "" {
				continue
			}
			out = append(out, OutputFile{
				Filename: e.Filename,
				URL:      s.objects.ObjectURL(storage.RunOutputKey(runID.String(), e.Filename)),
			})
		}
	}
	return out
}
