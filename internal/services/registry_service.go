package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/comfydeploy/engine/internal/cache"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/repository"
	appErr "github.com/comfydeploy/engine/pkg/errors"
	"github.com/comfydeploy/engine/pkg/logger"
	"github.com/comfydeploy/engine/pkg/utils"
)

// RegistryService serves the scoped listings and the owned-entity writes.
// Listings for anonymous callers are empty rather than failing.
type RegistryService interface {
	ListWorkflows(ctx context.Context, caller identity.Identity) ([]models.Workflow, error)
	GetWorkflow(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) (*models.Workflow, error)
	CreateWorkflow(ctx context.Context, caller identity.Identity, input *CreateWorkflowInput) (*models.Workflow, error)
	CreateWorkflowVersion(ctx context.Context, caller identity.Identity, workflowID uuid.UUID, snapshot datatypes.JSON) (*models.WorkflowVersion, error)

	ListMachines(ctx context.Context, caller identity.Identity) ([]models.Machine, error)
	CreateMachine(ctx context.Context, caller identity.Identity, input *CreateMachineInput) (*models.Machine, error)
	DeleteMachine(ctx context.Context, caller identity.Identity, machineID uuid.UUID) error

	ListCheckpoints(ctx context.Context, caller identity.Identity) ([]models.Checkpoint, error)
	ListModels(ctx context.Context, caller identity.Identity) ([]models.Model, error)

	ListAPIKeys(ctx context.Context, caller identity.Identity) ([]APIKeyView, error)
	// CreateAPIKey is the only call that ever returns the full secret.
	CreateAPIKey(ctx context.Context, caller identity.Identity, name string) (*CreatedAPIKey, error)
	RevokeAPIKey(ctx context.Context, caller identity.Identity, keyID uuid.UUID) error
}

type CreateWorkflowInput struct {
	Name string
	// Snapshot, when present, becomes version 1.
	Snapshot datatypes.JSON
}

type CreateMachineInput struct {
	Name      string
	Endpoint  string
	Type      models.MachineType
	AuthToken string
}

// APIKeyView is the listing projection of an API key.
type APIKeyView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreatedAPIKey struct {
	APIKeyView
	Secret string `json:"secret"`
}

const apiKeyPrefix = "cd_"

type registryService struct {
	workflowRepo   repository.WorkflowRepository
	machineRepo    repository.MachineRepository
	checkpointRepo repository.CheckpointRepository
	modelRepo      repository.ModelRepository
	apiKeyRepo     repository.APIKeyRepository
	pages          cache.PageCache
}

func NewRegistryService(
	workflowRepo repository.WorkflowRepository,
	machineRepo repository.MachineRepository,
	checkpointRepo repository.CheckpointRepository,
	modelRepo repository.ModelRepository,
	apiKeyRepo repository.APIKeyRepository,
	pages cache.PageCache,
) RegistryService {
	return &registryService{
		workflowRepo:   workflowRepo,
		machineRepo:    machineRepo,
		checkpointRepo: checkpointRepo,
		modelRepo:      modelRepo,
		apiKeyRepo:     apiKeyRepo,
		pages:          pages,
	}
}

var _ RegistryService = (*registryService)(nil)

func (s *registryService) ListWorkflows(ctx context.Context, caller identity.Identity) ([]models.Workflow, error) {
	return s.workflowRepo.ListScoped(ctx, caller)
}

func (s *registryService) GetWorkflow(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) (*models.Workflow, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	var wf models.Workflow
	if err := s.workflowRepo.GetDetail(ctx, caller, workflowID, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *registryService) CreateWorkflow(ctx context.Context, caller identity.Identity, input *CreateWorkflowInput) (*models.Workflow, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	logger.L().Info("create workflow", zap.String("name", input.Name), zap.String("user_id", caller.UserID), zap.String("org_id", caller.OrgID))

	wf := &models.Workflow{
		UserID: caller.UserID,
		OrgID:  models.OrgRef(caller.OrgID),
		Name:   input.Name,
	}
	if len(input.Snapshot) == 0 {
		if err := s.workflowRepo.Create(ctx, wf); err != nil {
			return nil, err
		}
		return wf, nil
	}
	v, err := s.workflowRepo.CreateWithVersion(ctx, wf, input.Snapshot)
	if err != nil {
		return nil, err
	}
	wf.Versions = []models.WorkflowVersion{*v}
	return wf, nil
}

func (s *registryService) CreateWorkflowVersion(ctx context.Context, caller identity.Identity, workflowID uuid.UUID, snapshot datatypes.JSON) (*models.WorkflowVersion, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	var wf models.Workflow
	if err := s.workflowRepo.GetScoped(ctx, caller, workflowID, &wf); err != nil {
		return nil, err
	}
	v, err := s.workflowRepo.CreateVersion(ctx, wf.ID, snapshot, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.pages.Invalidate(ctx, cache.WorkflowPath(wf.ID.String())); err != nil {
		logger.L().Warn("invalidate workflow page failed", zap.String("workflow_id", wf.ID.String()), zap.Error(err))
	}
	logger.L().Info("workflow version created", zap.String("workflow_id", wf.ID.String()), zap.Int("version", v.Version))
	return v, nil
}

func (s *registryService) ListMachines(ctx context.Context, caller identity.Identity) ([]models.Machine, error) {
	return s.machineRepo.ListScoped(ctx, caller)
}

func (s *registryService) CreateMachine(ctx context.Context, caller identity.Identity, input *CreateMachineInput) (*models.Machine, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	logger.L().Info("create machine", zap.String("type", string(input.Type)), zap.String("user_id", caller.UserID), zap.String("org_id", caller.OrgID))

	m := &models.Machine{
		UserID:    caller.UserID,
		OrgID:     models.OrgRef(caller.OrgID),
		Name:      input.Name,
		Endpoint:  input.Endpoint,
		Type:      input.Type,
		AuthToken: input.AuthToken,
	}
	if m.Type == "" {
		m.Type = models.MachineClassic
	}
	if err := s.machineRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *registryService) DeleteMachine(ctx context.Context, caller identity.Identity, machineID uuid.UUID) error {
	if !caller.Authenticated() {
		return appErr.Unauthenticated()
	}
	logger.L().Info("delete machine", zap.String("machine_id", machineID.String()), zap.String("user_id", caller.UserID))
	return s.machineRepo.DeleteScoped(ctx, caller, machineID)
}

func (s *registryService) ListCheckpoints(ctx context.Context, caller identity.Identity) ([]models.Checkpoint, error) {
	return s.checkpointRepo.ListScoped(ctx, caller)
}

func (s *registryService) ListModels(ctx context.Context, caller identity.Identity) ([]models.Model, error) {
	return s.modelRepo.ListScoped(ctx, caller)
}

func (s *registryService) ListAPIKeys(ctx context.Context, caller identity.Identity) ([]APIKeyView, error) {
	keys, err := s.apiKeyRepo.ListScoped(ctx, caller)
	if err != nil {
		return nil, err
	}
	out := make([]APIKeyView, 0, len(keys))
	for i := range keys {
		out = append(out, apiKeyView(&keys[i]))
	}
	return out, nil
}

func (s *registryService) CreateAPIKey(ctx context.Context, caller identity.Identity, name string) (*CreatedAPIKey, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	secret, err := utils.NewSecret(apiKeyPrefix, 24)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "generate api key failed")
	}
	k := &models.APIKey{
		UserID: caller.UserID,
		OrgID:  models.OrgRef(caller.OrgID),
		Name:   name,
		Key:    secret,
	}
	if err := s.apiKeyRepo.Create(ctx, k); err != nil {
		return nil, err
	}
	logger.L().Info("api key created", zap.String("api_key_id", k.ID.String()), zap.String("user_id", caller.UserID))
	return &CreatedAPIKey{APIKeyView: apiKeyView(k), Secret: secret}, nil
}

func (s *registryService) RevokeAPIKey(ctx context.Context, caller identity.Identity, keyID uuid.UUID) error {
	if !caller.Authenticated() {
		return appErr.Unauthenticated()
	}
	logger.L().Info("revoke api key", zap.String("api_key_id", keyID.String()), zap.String("user_id", caller.UserID))
	return s.apiKeyRepo.Revoke(ctx, caller, keyID)
}

func apiKeyView(k *models.APIKey) APIKeyView {
	return APIKeyView{
		ID:        k.ID,
		Name:      k.Name,
		Key:       utils.MaskSecret(k.Key),
		Revoked:   k.Revoked,
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
}
