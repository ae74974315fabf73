package brokerapp

import (
	"fmt"
	"time"

	"github.com/magicaleks/qudata-broker/internal/adapter/httpserver"
	"github.com/magicaleks/qudata-broker/internal/config"
	"github.com/magicaleks/qudata-broker/internal/impls"
	"github.com/magicaleks/qudata-broker/internal/infra/archive"
	"github.com/magicaleks/qudata-broker/internal/infra/logger"
	"github.com/magicaleks/qudata-broker/internal/infra/marketplace"
	"github.com/magicaleks/qudata-broker/internal/usecase/matching"
	"github.com/magicaleks/qudata-broker/internal/usecase/routing"
)

const BrokerVersion = "b0.1.0"

type Application struct {
	cfg    *config.Config
	api    *httpserver.API
	logger *logger.ZapLogger
}

func NewApplication(cfg *config.Config) (*Application, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	catalog := marketplace.NewClient(cfg.Marketplace.BaseURL, cfg.Marketplace.APIKey, log)
	matcher := matching.NewEngine(log)

	var sink impls.RouteArchiver
	switch cfg.Archive.Backend {
	case "file":
		sink = archive.NewFilesystemArchive(cfg.Archive.Dir)
	case "redis":
		sink = archive.NewRedisArchive(cfg.Archive.RedisAddr, time.Duration(cfg.Archive.RedisTTLHours)*time.Hour)
	}

	orchestrator := routing.NewOrchestrator(catalog, matcher, log, sink, routing.Options{
		BidTimeout:   cfg.BidTimeout(),
		PollInterval: cfg.PollInterval(),
		Weights:      cfg.Weights,
	})

	api := httpserver.NewAPI(matcher, orchestrator, catalog, log)

	return &Application{
		cfg:    cfg,
		api:    api,
		logger: log,
	}, nil
}

func (a *Application) Run() error {
	defer func() { _ = a.logger.Sync() }()

	server := httpserver.NewServer(a.cfg.Server.Port, a.api, a.cfg.Server.Secret, a.logger)
	a.logger.Info("broker %s listening on 0.0.0.0:%d", BrokerVersion, a.cfg.Server.Port)
	return server.Run()
}
