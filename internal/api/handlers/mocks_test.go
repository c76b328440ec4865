package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"greendrake/dunning/internal/dunning"
	"greendrake/dunning/internal/models"
)

// --- Mocks ---

// MockRunner
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, opts dunning.RunOptions) dunning.RunResult {
	args := m.Called(ctx, opts)
	return args.Get(0).(dunning.RunResult)
}

// MockAuditService
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, event *models.DunningEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditService) ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]models.DunningEvent, error) {
	args := m.Called(ctx, invoiceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DunningEvent), args.Error(1)
}

// MockAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
