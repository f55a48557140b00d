// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dev-mohitbeniwal/echo/accessproxy/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LogAccess(ctx context.Context, log audit.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditService) QueryLogs(ctx context.Context, from, to time.Time, actor string) ([]audit.AuditLog, error) {
	args := m.Called(ctx, from, to, actor)
	logs, _ := args.Get(0).([]audit.AuditLog)
	return logs, args.Error(1)
}

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) LogAccess(ctx context.Context, log audit.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) QueryLogs(ctx context.Context, from, to time.Time, actor string) ([]audit.AuditLog, error) {
	args := m.Called(ctx, from, to, actor)
	logs, _ := args.Get(0).([]audit.AuditLog)
	return logs, args.Error(1)
}
