package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HarborBit/ShipPortal/config"
	"github.com/HarborBit/ShipPortal/internal/broker/kafka"
	"github.com/HarborBit/ShipPortal/internal/cache/rediscache"
	"github.com/HarborBit/ShipPortal/internal/integrations/provider/shipsgohttp"
	"github.com/HarborBit/ShipPortal/internal/integrations/provider/synthetic"
	"github.com/HarborBit/ShipPortal/internal/services/audit"
	"github.com/HarborBit/ShipPortal/internal/services/identity"
	"github.com/HarborBit/ShipPortal/internal/services/tracking"
	"github.com/HarborBit/ShipPortal/internal/storage/pgportal"
)

type portalAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   portalAPIOpts

	identity *identity.Service
	tracking *tracking.Service
	audit    *audit.Service

	producer *kafka.Producer
	closeDB  func()
}

func mustBootstrapPortalAPI() *portalAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Portal.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.PortalAuditTopicName
	if topic == "" {
		topic = "portal.audit"
	}
	cacheTTL := time.Duration(cfg.Portal.ResultCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	providerTimeout := time.Duration(cfg.Portal.ProviderTimeoutSeconds) * time.Second
	if providerTimeout <= 0 {
		providerTimeout = 15 * time.Second
	}
	rlPerMin := int64(cfg.Portal.RateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 60
	}
	// Не указано в конфиге — значит включено.
	fallbackEnabled := cfg.Portal.FallbackEnabled == nil || *cfg.Portal.FallbackEnabled
	maskUnknown := cfg.Portal.MaskUnknownIdentifiers == nil || *cfg.Portal.MaskUnknownIdentifiers

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	publisher := audit.NewPublisher(producer, topic)

	// Пустой auth_code клиент обрабатывает сам: каждый живой запрос завершится
	// как "провайдер не настроен" и уйдёт в синтетику.
	providerClient := shipsgohttp.New(cfg.Portal.ProviderBaseURL, cfg.Portal.ProviderAuthCode, providerTimeout)

	identitySvc := identity.New(st, publisher)
	trackingSvc := tracking.New(providerClient, synthetic.New(), rc, rl, publisher).
		WithSettings(cacheTTL, rlPerMin, fallbackEnabled, maskUnknown)
	auditSvc := audit.New(st)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &portalAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: portalAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
		},
		identity: identitySvc,
		tracking: trackingSvc,
		audit:    auditSvc,
		producer: producer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgportal.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgportal.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *portalAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *portalAPIApp) Run() error {
	return runPortalAPI(a.ctx, a.opts, a.identity, a.tracking, a.audit)
}
