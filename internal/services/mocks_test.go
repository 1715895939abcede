package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// base mocks the scoped CRUD shared by the owned repositories.
type base[T any] struct {
	mock.Mock
}

func (m *base[T]) Create(ctx context.Context, obj *T) error {
	return m.Called(ctx, obj).Error(0)
}

func (m *base[T]) GetScoped(ctx context.Context, caller identity.Identity, id any, dest *T) error {
	return m.Called(ctx, caller, id, dest).Error(0)
}

func (m *base[T]) ListScoped(ctx context.Context, caller identity.Identity) ([]T, error) {
	args := m.Called(ctx, caller)
	if v := args.Get(0); v != nil {
		return v.([]T), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *base[T]) DeleteScoped(ctx context.Context, caller identity.Identity, id any) error {
	return m.Called(ctx, caller, id).Error(0)
}

type mockWorkflowRepo struct {
	base[models.Workflow]
}

func (m *mockWorkflowRepo) GetDetail(ctx context.Context, caller identity.Identity, workflowID uuid.UUID, dest *models.Workflow) error {
	return m.Called(ctx, caller, workflowID, dest).Error(0)
}

func (m *mockWorkflowRepo) CreateWithVersion(ctx context.Context, wf *models.Workflow, snapshot datatypes.JSON) (*models.WorkflowVersion, error) {
	args := m.Called(ctx, wf, snapshot)
	if v := args.Get(0); v != nil {
		return v.(*models.WorkflowVersion), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWorkflowRepo) CreateVersion(ctx context.Context, workflowID uuid.UUID, snapshot datatypes.JSON, createdBy string) (*models.WorkflowVersion, error) {
	args := m.Called(ctx, workflowID, snapshot, createdBy)
	if v := args.Get(0); v != nil {
		return v.(*models.WorkflowVersion), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWorkflowRepo) GetVersion(ctx context.Context, versionID uuid.UUID, dest *models.WorkflowVersion) error {
	return m.Called(ctx, versionID, dest).Error(0)
}

type mockMachineRepo struct {
	base[models.Machine]
}

type mockDeploymentRepo struct {
	mock.Mock
}

func (m *mockDeploymentRepo) UpsertSlot(ctx context.Context, d *models.Deployment) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDeploymentRepo) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]models.Deployment, error) {
	args := m.Called(ctx, workflowID)
	if v := args.Get(0); v != nil {
		return v.([]models.Deployment), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDirectoryRepo struct {
	mock.Mock
}

func (m *mockDirectoryRepo) GetUser(ctx context.Context, userID string, dest *models.User) error {
	return m.Called(ctx, userID, dest).Error(0)
}

func (m *mockDirectoryRepo) GetOrganization(ctx context.Context, orgID string, dest *models.Organization) error {
	return m.Called(ctx, orgID, dest).Error(0)
}

func (m *mockDirectoryRepo) SyncUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockDirectoryRepo) SyncOrganization(ctx context.Context, o *models.Organization) error {
	return m.Called(ctx, o).Error(0)
}

type mockPageCache struct {
	mock.Mock
}

func (m *mockPageCache) Get(ctx context.Context, path, scope string) ([]byte, bool, error) {
	args := m.Called(ctx, path, scope)
	b, _ := args.Get(0).([]byte)
	return b, args.Bool(1), args.Error(2)
}

func (m *mockPageCache) Set(ctx context.Context, path, scope string, body []byte, ttl time.Duration) error {
	return m.Called(ctx, path, scope, body, ttl).Error(0)
}

func (m *mockPageCache) Invalidate(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}
