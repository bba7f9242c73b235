package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/HarborBit/ShipPortal/internal/broker/messages"
	"github.com/HarborBit/ShipPortal/internal/cache"
	"github.com/HarborBit/ShipPortal/internal/integrations/provider"
	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/pkg/errors"
)

// Сырые ошибки адаптера наружу не выходят: вызывающий видит только три
// категории.
type TrackErrorKind string

const (
	TrackNotFound           TrackErrorKind = "not_found"
	TrackRateLimited        TrackErrorKind = "rate_limited"
	TrackServiceUnavailable TrackErrorKind = "service_unavailable"
)

type TrackError struct {
	Kind TrackErrorKind
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track: %s", e.Kind)
}

func TrackKindOf(err error) (TrackErrorKind, bool) {
	var te *TrackError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

type Fallback interface {
	Synthesize(query models.TrackingQuery) models.TrackingResult
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type AuditSink interface {
	Publish(ctx context.Context, m messages.PortalAudit)
}

type Service struct {
	client   provider.Client
	fallback Fallback
	cache    cache.BytesCache
	rl       RateLimiter
	audit    AuditSink

	cacheTTL           time.Duration
	rateLimitPerMinute int64
	fallbackEnabled    bool
	maskUnknown        bool

	now func() time.Time
}

func New(client provider.Client, fallback Fallback, c cache.BytesCache, rl RateLimiter, audit AuditSink) *Service {
	return &Service{
		client:          client,
		fallback:        fallback,
		cache:           c,
		rl:              rl,
		audit:           audit,
		cacheTTL:        10 * time.Minute,
		fallbackEnabled: true,
		maskUnknown:     true,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithSettings(cacheTTL time.Duration, rlPerMin int64, fallbackEnabled, maskUnknown bool) *Service {
	if cacheTTL > 0 {
		s.cacheTTL = cacheTTL
	}
	s.rateLimitPerMinute = rlPerMin
	s.fallbackEnabled = fallbackEnabled
	s.maskUnknown = maskUnknown
	return s
}

// Track: пробуем живого провайдера, при отказе деградируем в синтетику.
// allowFallback=true — клиентский путь (доступность важнее сигнала об
// ошибке), false — диагностический (здоровье провайдера не маскируется).
func (s *Service) Track(ctx context.Context, query models.TrackingQuery, allowFallback bool) (models.TrackingResult, error) {
	kind, value, err := query.Identifier()
	if err != nil {
		// Валидация до любого I/O.
		return models.TrackingResult{}, err
	}

	if res, ok := s.cacheGet(ctx, kind, value); ok {
		s.auditTracking(ctx, value, "ok", res.SourceKind)
		return res, nil
	}

	if limited := s.overLimit(ctx); limited {
		slog.Warn("provider rate limit exhausted locally", "identifier", value)
		return s.degrade(ctx, query, value, provider.ErrRateLimited, allowFallback)
	}

	res, err := s.client.FetchLive(ctx, query)
	if err == nil {
		s.cacheSet(ctx, kind, value, res)
		s.auditTracking(ctx, value, "ok", res.SourceKind)
		return res, nil
	}

	pk, ok := provider.KindOf(err)
	if !ok {
		pk = provider.ErrUpstreamFault
	}
	switch pk {
	case provider.ErrRateLimited, provider.ErrUnreachable, provider.ErrUpstreamFault:
		slog.Warn("live tracking degraded", "identifier", value, "kind", string(pk), "error", err.Error())
	}
	return s.degrade(ctx, query, value, pk, allowFallback)
}

// degrade реализует таблицу решений: какой из отказов провайдера чем
// оборачивается для вызывающего.
func (s *Service) degrade(ctx context.Context, query models.TrackingQuery, value string, pk provider.ErrorKind, allowFallback bool) (models.TrackingResult, error) {
	useFallback := allowFallback && s.fallbackEnabled

	if pk == provider.ErrUpstreamRejected {
		// Провайдер не знает идентификатор. Маскировать или честно отдать 404 —
		// явный конфигурационный выбор, не угадывание.
		if useFallback && s.maskUnknown {
			return s.synthesize(ctx, query, value)
		}
		s.auditTracking(ctx, value, string(TrackNotFound), "")
		return models.TrackingResult{}, &TrackError{Kind: TrackNotFound}
	}

	if useFallback {
		return s.synthesize(ctx, query, value)
	}

	var kind TrackErrorKind
	switch pk {
	case provider.ErrRateLimited:
		kind = TrackRateLimited
	default:
		// NotConfigured / Unreachable / UpstreamFault.
		kind = TrackServiceUnavailable
	}
	s.auditTracking(ctx, value, string(kind), "")
	return models.TrackingResult{}, &TrackError{Kind: kind}
}

func (s *Service) synthesize(ctx context.Context, query models.TrackingQuery, value string) (models.TrackingResult, error) {
	res := s.fallback.Synthesize(query)
	s.auditTracking(ctx, value, "ok", res.SourceKind)
	return res, nil
}

func (s *Service) overLimit(ctx context.Context) bool {
	if s.rl == nil || s.rateLimitPerMinute <= 0 {
		return false
	}
	key := fmt.Sprintf("rl:provider:shipsgo:%s", s.now().Format("200601021504"))
	allowed, _, err := s.rl.Allow(ctx, key, s.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		// Недоступный redis не должен ронять трекинг.
		slog.Warn("rate limiter unavailable", "error", err.Error())
		return false
	}
	return !allowed
}

func (s *Service) cacheGet(ctx context.Context, kind models.QueryKind, value string) (models.TrackingResult, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return models.TrackingResult{}, false
	}
	b, ok, err := s.cache.Get(ctx, resultKey(kind, value))
	if err != nil || !ok {
		return models.TrackingResult{}, false
	}
	var res models.TrackingResult
	if json.Unmarshal(b, &res) != nil {
		return models.TrackingResult{}, false
	}
	return res, true
}

// Кэшируем только живые результаты: fallback дёшев и всегда под рукой,
// а маскировать восстановившегося провайдера старой синтетикой нельзя.
func (s *Service) cacheSet(ctx context.Context, kind models.QueryKind, value string, res models.TrackingResult) {
	if s.cache == nil || s.cacheTTL <= 0 || res.SourceKind != models.SourceLive {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, resultKey(kind, value), b, s.cacheTTL)
}

func (s *Service) auditTracking(ctx context.Context, value, outcome string, source models.SourceKind) {
	if s.audit == nil {
		return
	}
	s.audit.Publish(ctx, messages.PortalAudit{
		Kind:       models.AuditKindTracking,
		Identifier: value,
		Outcome:    outcome,
		SourceKind: string(source),
		At:         s.now(),
	})
}

func resultKey(kind models.QueryKind, value string) string {
	return fmt.Sprintf("track:q:%s:%s", kind, value)
}
