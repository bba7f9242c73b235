package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/HarborBit/ShipPortal/config"
	"github.com/HarborBit/ShipPortal/internal/broker/kafka"
	"github.com/HarborBit/ShipPortal/internal/broker/messages"
	"github.com/HarborBit/ShipPortal/internal/services/audit"
	"github.com/HarborBit/ShipPortal/internal/storage/pgportal"
)

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type auditWorkerFactories struct {
	newStorage  func(cfg *config.Config) (repo audit.Repository, closeFn func(), err error)
	newConsumer func(cfg *config.Config, topic, group string) kafkaConsumer
}

func defaultAuditWorkerFactories() auditWorkerFactories {
	return auditWorkerFactories{
		newStorage: func(cfg *config.Config) (audit.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgportal.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newConsumer: func(cfg *config.Config, topic, group string) kafkaConsumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, topic, group)
		},
	}
}

func RunAuditWorker(ctx context.Context, cfg *config.Config, f auditWorkerFactories) error {
	topic := cfg.Kafka.PortalAuditTopicName
	if topic == "" {
		topic = "portal.audit"
	}
	group := cfg.Portal.KafkaConsumerGroup
	if group == "" {
		group = "audit-worker"
	}
	httpAddr := cfg.Portal.WorkerHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	consumer := f.newConsumer(cfg, topic, group)
	defer func() { _ = consumer.Close() }()

	svc := audit.New(repo)
	stats := &workerStats{}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{httpAddr: httpAddr, stats: stats})
	}()

	consumeErr := make(chan error, 1)
	go func() {
		slog.Info("audit consumer started", "topic", topic, "group", group)
		consumeErr <- consumer.Consume(ctx, func(_key, value []byte) error {
			stats.Consumed.Add(1)
			var m messages.PortalAudit
			if err := json.Unmarshal(value, &m); err != nil {
				// Битые сообщения коммитим и идём дальше, иначе партиция встанет.
				stats.Failed.Add(1)
				slog.Warn("audit message dropped", "error", err.Error())
				return nil
			}
			if err := svc.Apply(ctx, m); err != nil {
				stats.Failed.Add(1)
				return err
			}
			stats.Applied.Add(1)
			return nil
		})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-consumeErr:
		return err
	}
}
