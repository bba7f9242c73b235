package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/HarborBit/ShipPortal/internal/broker/messages"
	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Publisher шлёт события аудита в kafka. Fire-and-forget: ошибка публикации
// логируется и никогда не валит запрос, из которого событие родилось.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, m messages.PortalAudit) {
	if p == nil || p.producer == nil {
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		slog.Warn("marshal audit event", "error", err.Error())
		return
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(m.Identifier), b); err != nil {
		slog.Warn("publish audit event", "error", err.Error())
	}
}

type Repository interface {
	InsertAuditEntry(ctx context.Context, e models.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
}

// Service применяет потреблённые из kafka события к хранилищу и отдаёт
// ленту аудита бэк-офису.
type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Apply(ctx context.Context, m messages.PortalAudit) error {
	switch m.Kind {
	case models.AuditKindLogin, models.AuditKindTracking:
	default:
		return errors.Errorf("unknown audit kind %q", m.Kind)
	}
	if m.Outcome == "" {
		return errors.New("outcome is required")
	}
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}

	return s.repo.InsertAuditEntry(ctx, models.AuditEntry{
		Kind:           m.Kind,
		AccountID:      m.AccountID,
		IdentifierKind: m.IdentifierKind,
		Identifier:     m.Identifier,
		Outcome:        m.Outcome,
		SourceKind:     m.SourceKind,
		At:             m.At,
	})
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, limit, offset)
}
