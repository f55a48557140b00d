// service/request_service.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/accessproxy/logging"
)

// IRequestService performs the real work behind the proxy
type IRequestService interface {
	Handle(ctx context.Context, request string) string
}

// RequestService is the simulated backend. It never fails.
type RequestService struct {
	calls atomic.Int64
}

var _ IRequestService = &RequestService{}

func NewRequestService() *RequestService {
	return &RequestService{}
}

func (s *RequestService) Handle(ctx context.Context, request string) string {
	n := s.calls.Inc()
	logger.Info("Processing request", zap.String("request", request), zap.Int64("call", n))
	return fmt.Sprintf("Result for %s", request)
}

// Calls returns how many times Handle has run
func (s *RequestService) Calls() int64 {
	return s.calls.Load()
}
