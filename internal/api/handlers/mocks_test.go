package handlers

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"github.com/comfydeploy/engine/internal/billing"
	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/internal/services"
	"github.com/comfydeploy/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// result unpacks a typed first return value from a mock call.
func result[T any](args mock.Arguments) (T, error) {
	var zero T
	if v := args.Get(0); v != nil {
		return v.(T), args.Error(1)
	}
	return zero, args.Error(1)
}

type mockDeployments struct{ mock.Mock }

func (m *mockDeployments) UpsertDeployment(ctx context.Context, caller identity.Identity, input *services.UpsertDeploymentInput) (string, error) {
	args := m.Called(ctx, caller, input)
	return args.String(0), args.Error(1)
}

func (m *mockDeployments) ListDeployments(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.Deployment, error) {
	return result[[]models.Deployment](m.Called(ctx, caller, workflowID))
}

func (m *mockDeployments) MintMachineAccessToken(ctx context.Context, caller identity.Identity, input *services.MachineAccessInput) (*services.MachineAccess, error) {
	return result[*services.MachineAccess](m.Called(ctx, caller, input))
}

type mockRuns struct{ mock.Mock }

func (m *mockRuns) CreateRun(ctx context.Context, caller identity.Identity, input *services.CreateRunInput) (*models.WorkflowRun, error) {
	return result[*models.WorkflowRun](m.Called(ctx, caller, input))
}

func (m *mockRuns) UpdateRun(ctx context.Context, caller identity.Identity, input *services.RunUpdateInput) (*models.WorkflowRun, error) {
	return result[*models.WorkflowRun](m.Called(ctx, caller, input))
}

func (m *mockRuns) GetRunsData(ctx context.Context, caller identity.Identity, runID uuid.UUID) (*services.RunData, error) {
	return result[*services.RunData](m.Called(ctx, caller, runID))
}

func (m *mockRuns) GetRunsOutput(ctx context.Context, caller identity.Identity, runID uuid.UUID) ([]services.RunOutputView, error) {
	return result[[]services.RunOutputView](m.Called(ctx, caller, runID))
}

func (m *mockRuns) ListRuns(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.WorkflowRun, error) {
	return result[[]models.WorkflowRun](m.Called(ctx, caller, workflowID))
}

type mockRegistry struct{ mock.Mock }

func (m *mockRegistry) ListWorkflows(ctx context.Context, caller identity.Identity) ([]models.Workflow, error) {
	return result[[]models.Workflow](m.Called(ctx, caller))
}

func (m *mockRegistry) GetWorkflow(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) (*models.Workflow, error) {
	return result[*models.Workflow](m.Called(ctx, caller, workflowID))
}

func (m *mockRegistry) CreateWorkflow(ctx context.Context, caller identity.Identity, input *services.CreateWorkflowInput) (*models.Workflow, error) {
	return result[*models.Workflow](m.Called(ctx, caller, input))
}

func (m *mockRegistry) CreateWorkflowVersion(ctx context.Context, caller identity.Identity, workflowID uuid.UUID, snapshot datatypes.JSON) (*models.WorkflowVersion, error) {
	return result[*models.WorkflowVersion](m.Called(ctx, caller, workflowID, snapshot))
}

func (m *mockRegistry) ListMachines(ctx context.Context, caller identity.Identity) ([]models.Machine, error) {
	return result[[]models.Machine](m.Called(ctx, caller))
}

func (m *mockRegistry) CreateMachine(ctx context.Context, caller identity.Identity, input *services.CreateMachineInput) (*models.Machine, error) {
	return result[*models.Machine](m.Called(ctx, caller, input))
}

func (m *mockRegistry) DeleteMachine(ctx context.Context, caller identity.Identity, machineID uuid.UUID) error {
	return m.Called(ctx, caller, machineID).Error(0)
}

func (m *mockRegistry) ListCheckpoints(ctx context.Context, caller identity.Identity) ([]models.Checkpoint, error) {
	return result[[]models.Checkpoint](m.Called(ctx, caller))
}

func (m *mockRegistry) ListModels(ctx context.Context, caller identity.Identity) ([]models.Model, error) {
	return result[[]models.Model](m.Called(ctx, caller))
}

func (m *mockRegistry) ListAPIKeys(ctx context.Context, caller identity.Identity) ([]services.APIKeyView, error) {
	return result[[]services.APIKeyView](m.Called(ctx, caller))
}

func (m *mockRegistry) CreateAPIKey(ctx context.Context, caller identity.Identity, name string) (*services.CreatedAPIKey, error) {
	return result[*services.CreatedAPIKey](m.Called(ctx, caller, name))
}

func (m *mockRegistry) RevokeAPIKey(ctx context.Context, caller identity.Identity, keyID uuid.UUID) error {
	return m.Called(ctx, caller, keyID).Error(0)
}

type mockBilling struct{ mock.Mock }

func (m *mockBilling) CreateCheckoutSession(ctx context.Context, caller identity.Identity, plan, successURL, cancelURL string) (*billing.Session, error) {
	return result[*billing.Session](m.Called(ctx, caller, plan, successURL, cancelURL))
}

func (m *mockBilling) CreatePortalSession(ctx context.Context, caller identity.Identity) (*billing.Session, error) {
	return result[*billing.Session](m.Called(ctx, caller))
}

func (m *mockBilling) ListSubscriptions(ctx context.Context, caller identity.Identity) ([]billing.Subscription, error) {
	return result[[]billing.Subscription](m.Called(ctx, caller))
}

func (m *mockBilling) UsageSummaries(ctx context.Context, caller identity.Identity) ([]billing.UsageSummary, error) {
	return result[[]billing.UsageSummary](m.Called(ctx, caller))
}
