package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/comfydeploy/engine/internal/cache"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/repository"
	appErr "github.com/comfydeploy/engine/pkg/errors"
	"github.com/comfydeploy/engine/pkg/logger"
)

// DeploymentService maintains environment slots and hands out machine access.
type DeploymentService interface {
	// UpsertDeployment points the (workflow, environment) slot at a version and
	// machine, creating the slot on first use. The returned message names the
	// environment; no row id is returned.
	UpsertDeployment(ctx context.Context, caller identity.Identity, input *UpsertDeploymentInput) (string, error)
	ListDeployments(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.Deployment, error)
	// MintMachineAccessToken builds a redirect URL into a machine carrying a
	// signed capability for the caller.
	MintMachineAccessToken(ctx context.Context, caller identity.Identity, input *MachineAccessInput) (*MachineAccess, error)
}

type UpsertDeploymentInput struct {
	WorkflowID        uuid.UUID
	WorkflowVersionID uuid.UUID
	MachineID         uuid.UUID
	Environment       models.Environment
}

type MachineAccessInput struct {
	WorkflowVersionID uuid.UUID
	MachineID         uuid.UUID
	// Origin is the scheme and host the caller reached us on.
	Origin string
}

type MachineAccess struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

const (
	managedAPIAuthority = "comfyui-api"
	managedAppAuthority = "comfyui-app"
)

type deploymentService struct {
	workflowRepo  repository.WorkflowRepository
	machineRepo   repository.MachineRepository
	deployRepo    repository.DeploymentRepository
	directoryRepo repository.DirectoryRepository
	auth          AuthService
	pages         cache.PageCache
}

func NewDeploymentService(
	workflowRepo repository.WorkflowRepository,
	machineRepo repository.MachineRepository,
	deployRepo repository.DeploymentRepository,
	directoryRepo repository.DirectoryRepository,
	auth AuthService,
	pages cache.PageCache,
) DeploymentService {
	return &deploymentService{
		workflowRepo:  workflowRepo,
		machineRepo:   machineRepo,
		deployRepo:    deployRepo,
		directoryRepo: directoryRepo,
		auth:          auth,
		pages:         pages,
	}
}

var _ DeploymentService = (*deploymentService)(nil)

func (s *deploymentService) UpsertDeployment(ctx context.Context, caller identity.Identity, input *UpsertDeploymentInput) (string, error) {
	if !caller.Authenticated() {
		return "", appErr.Unauthenticated()
	}
	if !input.Environment.Valid() {
		return "", appErr.Validation("environment", fmt.Sprintf("unknown environment %q", input.Environment))
	}
	logger.L().Info("upsert deployment",
		zap.String("workflow_id", input.WorkflowID.String()),
		zap.String("environment", string(input.Environment)),
		zap.String("machine_id", input.MachineID.String()),
		zap.String("user_id", caller.UserID),
		zap.String("org_id", caller.OrgID),
	)

	var wf models.Workflow
	if err := s.workflowRepo.GetScoped(ctx, caller, input.WorkflowID, &wf); err != nil {
		return "", err
	}
	var version models.WorkflowVersion
	if err := s.workflowRepo.GetVersion(ctx, input.WorkflowVersionID, &version); err != nil {
		return "", err
	}
	if version.WorkflowID != wf.ID {
		return "", appErr.NotFound("workflow version")
	}
	var machine models.Machine
	if err := s.machineRepo.GetScoped(ctx, caller, input.MachineID, &machine); err != nil {
		return "", err
	}

	d := &models.Deployment{
		UserID:            caller.UserID,
		OrgID:             models.OrgRef(caller.OrgID),
		WorkflowID:        wf.ID,
		WorkflowVersionID: version.ID,
		MachineID:         machine.ID,
		Environment:       input.Environment,
	}
	if err := s.deployRepo.UpsertSlot(ctx, d); err != nil {
		return "", err
	}

	if err := s.pages.Invalidate(ctx, cache.WorkflowPath(wf.ID.String())); err != nil {
		logger.L().Warn("invalidate workflow page failed", zap.String("workflow_id", wf.ID.String()), zap.Error(err))
	}

	logger.L().Info("deployment upserted",
		zap.String("workflow_id", wf.ID.String()),
		zap.String("environment", string(input.Environment)),
		zap.Int("version", version.Version),
	)
	return fmt.Sprintf("Successfully created deployment for %s", input.Environment), nil
}

func (s *deploymentService) ListDeployments(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.Deployment, error) {
	if !caller.Authenticated() {
		return []models.Deployment{}, nil
	}
	var wf models.Workflow
	if err := s.workflowRepo.GetScoped(ctx, caller, workflowID, &wf); err != nil {
		return nil, err
	}
	return s.deployRepo.ListByWorkflow(ctx, wf.ID)
}

func (s *deploymentService) MintMachineAccessToken(ctx context.Context, caller identity.Identity, input *MachineAccessInput) (*MachineAccess, error) {
	if !caller.Authenticated() {
		return nil, appErr.Unauthenticated()
	}
	logger.L().Info("mint machine access token",
		zap.String("machine_id", input.MachineID.String()),
		zap.String("workflow_version_id", input.WorkflowVersionID.String()),
		zap.String("user_id", caller.UserID),
		zap.String("org_id", caller.OrgID),
	)

	var machine models.Machine
	if err := s.machineRepo.GetScoped(ctx, caller, input.MachineID, &machine); err != nil {
		return nil, err
	}

	target, err := url.Parse(MachineEndpoint(&machine))
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "machine endpoint is not a valid url")
	}

	token, exp, err := s.auth.MintMachineToken(caller)
	if err != nil {
		logger.L().Error("sign machine token failed", zap.String("machine_id", machine.ID.String()), zap.Error(err))
		return nil, err
	}

	q := url.Values{}
	q.Set("workflow_version_id", input.WorkflowVersionID.String())
	q.Set("auth_token", token)
	q.Set("org_display", s.displayName(ctx, caller))
	q.Set("origin", input.Origin)
	target.RawQuery = q.Encode()

	return &MachineAccess{URL: target.String(), ExpiresAt: exp}, nil
}

// MachineEndpoint is the externally reachable endpoint of m. Managed machines
// are addressed through their app-facing authority.
func MachineEndpoint(m *models.Machine) string {
	if m.Type.Managed() {
		return strings.Replace(m.Endpoint, managedAPIAuthority, managedAppAuthority, 1)
	}
	return m.Endpoint
}

// displayName resolves the organization name, or the user's name outside an org.
// Unknown directory entries fall back to the raw id.
func (s *deploymentService) displayName(ctx context.Context, caller identity.Identity) string {
	if caller.InOrg() {
		var org models.Organization
		if err := s.directoryRepo.GetOrganization(ctx, caller.OrgID, &org); err != nil {
			logger.L().Warn("resolve organization name failed", zap.String("org_id", caller.OrgID), zap.Error(err))
			return caller.OrgID
		}
		return org.Name
	}
	var u models.User
	if err := s.directoryRepo.GetUser(ctx, caller.UserID, &u); err != nil {
		logger.L().Warn("resolve user name failed", zap.String("user_id", caller.UserID), zap.Error(err))
		return caller.UserID
	}
	return u.DisplayName()
}
