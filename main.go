package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/echo/accessproxy/audit"
	"github.com/dev-mohitbeniwal/echo/accessproxy/config"
	logger "github.com/dev-mohitbeniwal/echo/accessproxy/logging"
	"github.com/dev-mohitbeniwal/echo/accessproxy/model"
	"github.com/dev-mohitbeniwal/echo/accessproxy/proxy"
	"github.com/dev-mohitbeniwal/echo/accessproxy/service"
	"github.com/dev-mohitbeniwal/echo/accessproxy/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))

	err := run()
	if err != nil {
		logger.Error("Demo failed", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := util.NewEventBus()
	eventBus.Start(ctx)

	auditService, queryable := newAuditService()
	unsubscribe := audit.SubscribeAccessEvents(eventBus, auditService)
	defer unsubscribe()

	metrics := proxy.NewMetrics()
	handler := service.NewRequestService()

	actors := []model.Actor{
		{Name: "Admin", Role: model.RoleAdmin},
		{Name: "User", Role: model.RoleUser},
		{Name: "Guest", Role: model.RoleGuest},
	}

	proxies := make(map[model.Role]*proxy.Proxy, len(actors))
	defer func() {
		for _, p := range proxies {
			_ = p.Close()
		}
	}()
	for _, actor := range actors {
		p, err := proxy.New(actor, handler, proxy.WithEventBus(eventBus), proxy.WithMetrics(metrics))
		if err != nil {
			return fmt.Errorf("create proxy for %s: %w", actor.Name, err)
		}
		proxies[p.Actor().Role] = p
	}

	started := time.Now()
	adminProxy := proxies[model.RoleAdmin]

	report(adminProxy, adminProxy.Request(ctx, "Request1"))
	report(proxies[model.RoleUser], proxies[model.RoleUser].Request(ctx, "Request2"))
	report(proxies[model.RoleGuest], proxies[model.RoleGuest].Request(ctx, "Request3"))
	report(adminProxy, adminProxy.Request(ctx, "Request1"))

	wait := config.GetDuration("demo.wait")
	logger.Info("Waiting for the cache to expire", zap.Duration("wait", wait))
	time.Sleep(wait)

	report(adminProxy, adminProxy.Request(ctx, "Request1"))

	eventBus.Wait()
	logger.Info("Demo finished", zap.Int64("handlerCalls", handler.Calls()))
	logMetrics(metrics)

	if queryable {
		logAuditTrail(ctx, auditService, started)
	}
	return nil
}

// newAuditService reports whether the chosen repository can be queried back.
func newAuditService() (audit.Service, bool) {
	url := config.GetString("elasticsearch.url")
	if url == "" {
		return audit.NewService(audit.NewLogRepository()), false
	}
	repo, err := audit.NewElasticsearchRepository(url, config.GetString("elasticsearch.index"))
	if err != nil {
		logger.Warn("Falling back to log audit repository", zap.Error(err))
		return audit.NewService(audit.NewLogRepository()), false
	}
	return audit.NewService(repo), true
}

func logAuditTrail(ctx context.Context, auditService audit.Service, since time.Time) {
	logs, err := auditService.QueryLogs(ctx, since, time.Now(), "")
	if err != nil {
		logger.Warn("Failed to read audit trail", zap.Error(err))
		return
	}
	for _, l := range logs {
		logger.Info("Audit record",
			zap.String("actor", l.Actor),
			zap.String("request", l.Request),
			zap.String("outcome", l.Outcome),
			zap.Bool("accessGranted", l.AccessGranted))
	}
}

func report(p *proxy.Proxy, outcome model.Outcome) {
	if err := outcome.Err(); err != nil {
		logger.Warn("Request refused", zap.String("request", outcome.Request), zap.Error(err))
		return
	}
	logger.Info("Request answered",
		zap.String("actor", p.Actor().Name),
		zap.String("request", outcome.Request),
		zap.Stringer("outcome", outcome.Kind),
		zap.String("response", outcome.Response))
}

func logMetrics(metrics *proxy.Metrics) {
	families, err := metrics.Registry().Gather()
	if err != nil {
		logger.Error("Failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			}
			fields := []zap.Field{zap.String("metric", mf.GetName()), zap.Float64("value", value)}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			logger.Info("Metric", fields...)
		}
	}
}
