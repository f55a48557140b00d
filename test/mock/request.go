// test/mock/request.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRequestService is a mock implementation of service.IRequestService
type MockRequestService struct {
	mock.Mock
}

func (m *MockRequestService) Handle(ctx context.Context, request string) string {
	args := m.Called(ctx, request)
	return args.String(0)
}
