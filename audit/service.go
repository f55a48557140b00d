// audit/service.go
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/echo/accessproxy/logging"
	"github.com/dev-mohitbeniwal/echo/accessproxy/model"
	"github.com/dev-mohitbeniwal/echo/accessproxy/util"
)

type Service interface {
	LogAccess(ctx context.Context, log AuditLog) error
	QueryLogs(ctx context.Context, from, to time.Time, actor string) ([]AuditLog, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) LogAccess(ctx context.Context, log AuditLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = s.now().UTC()
	}
	return s.repo.LogAccess(ctx, log)
}

func (s *service) QueryLogs(ctx context.Context, from, to time.Time, actor string) ([]AuditLog, error) {
	return s.repo.QueryLogs(ctx, from, to, actor)
}

// SubscribeAccessEvents records every proxy outcome published on eb.
// The returned func removes the subscriptions.
func SubscribeAccessEvents(eb *util.EventBus, svc Service) (unsubscribe func()) {
	handler := func(ctx context.Context, event util.Event) error {
		outcome, ok := event.Payload.(model.Outcome)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		if err := svc.LogAccess(ctx, FromOutcome(outcome, time.Now())); err != nil {
			logger.Warn("Failed to write audit log",
				zap.Error(err),
				zap.String("actor", outcome.Actor.Name),
				zap.String("request", outcome.Request))
			return err
		}
		return nil
	}

	unsubs := []func(){
		eb.Subscribe(util.EventAccessDenied, handler),
		eb.Subscribe(util.EventCacheHit, handler),
		eb.Subscribe(util.EventFetched, handler),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
