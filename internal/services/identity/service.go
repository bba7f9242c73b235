package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/HarborBit/ShipPortal/internal/broker/messages"
	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Внутренние виды отказов аутентификации. Наружу транспорт отдаёт один
// общий 401, чтобы нельзя было перебором выяснить, какие номера существуют;
// в логах и аудите виды различимы.
type AuthErrorKind string

const (
	AuthNotFound           AuthErrorKind = "not_found"
	AuthInvalidCredentials AuthErrorKind = "invalid_credentials"
	AuthTokenExpired       AuthErrorKind = "token_expired"
	AuthInactive           AuthErrorKind = "inactive"
	AuthNoPortalAccess     AuthErrorKind = "no_portal_access"
)

type AuthError struct {
	Kind AuthErrorKind
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s", e.Kind)
}

func AuthKindOf(err error) (AuthErrorKind, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

type Repository interface {
	FindAccountByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Account, error)
	FindAccountByCustomerNumber(ctx context.Context, customerNumber string) (*models.Account, error)
	FindAccountByDirectToken(ctx context.Context, token string) (*models.Account, error)
	TouchLastLogin(ctx context.Context, id uint64) error
}

type AuditSink interface {
	Publish(ctx context.Context, m messages.PortalAudit)
}

type Service struct {
	repo  Repository
	audit AuditSink
	now   func() time.Time
}

func New(repo Repository, audit AuditSink) *Service {
	return &Service{repo: repo, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

// Resolve сводит все пути входа (номер отслеживания, номер клиента,
// прямой токен) к одному аккаунту. Проверки active/portal-access идут строго
// после проверки учётных данных, чтобы отключённый аккаунт не узнавал по
// таймингу, что пароль подошёл.
func (s *Service) Resolve(ctx context.Context, kind models.IdentifierKind, value, password string) (*models.Account, error) {
	if !kind.Valid() {
		return nil, errors.Errorf("unknown identifier kind %q", kind)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("identifier value is required")
	}
	// Нормализуем один раз: и lookup, и аудит должны видеть канонический
	// идентификатор. Токены чувствительны к регистру.
	if kind != models.IdentifierDirectToken {
		value = strings.ToUpper(value)
	}

	acc, err := s.lookup(ctx, kind, value)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, s.fail(ctx, kind, value, nil, AuthNotFound)
	}

	if kind == models.IdentifierDirectToken {
		// Токен сам по себе учётные данные, пароль не нужен.
		if acc.TokenExpiresAt != nil && acc.TokenExpiresAt.Before(s.now()) {
			return nil, s.fail(ctx, kind, value, &acc.ID, AuthTokenExpired)
		}
	} else {
		if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
			return nil, s.fail(ctx, kind, value, &acc.ID, AuthInvalidCredentials)
		}
	}

	if !acc.IsActive {
		return nil, s.fail(ctx, kind, value, &acc.ID, AuthInactive)
	}
	if !acc.HasPortalAccess {
		return nil, s.fail(ctx, kind, value, &acc.ID, AuthNoPortalAccess)
	}

	// Best-effort: не смогли записать lastLogin — логин всё равно успешен.
	if err := s.repo.TouchLastLogin(ctx, acc.ID); err != nil {
		slog.Warn("touch last login", "account_id", acc.ID, "error", err.Error())
	} else {
		t := s.now()
		acc.LastLogin = &t
	}

	s.publish(ctx, messages.PortalAudit{
		Kind:           models.AuditKindLogin,
		AccountID:      &acc.ID,
		IdentifierKind: string(kind),
		Identifier:     value,
		Outcome:        "success",
		At:             s.now(),
	})

	return acc, nil
}

func (s *Service) lookup(ctx context.Context, kind models.IdentifierKind, value string) (*models.Account, error) {
	switch kind {
	case models.IdentifierTrackingNumber:
		return s.repo.FindAccountByTrackingNumber(ctx, value)
	case models.IdentifierCustomerNumber:
		return s.repo.FindAccountByCustomerNumber(ctx, value)
	default:
		return s.repo.FindAccountByDirectToken(ctx, value)
	}
}

func (s *Service) fail(ctx context.Context, kind models.IdentifierKind, value string, accountID *uint64, authKind AuthErrorKind) error {
	s.publish(ctx, messages.PortalAudit{
		Kind:           models.AuditKindLogin,
		AccountID:      accountID,
		IdentifierKind: string(kind),
		Identifier:     value,
		Outcome:        string(authKind),
		At:             s.now(),
	})
	return &AuthError{Kind: authKind}
}

func (s *Service) publish(ctx context.Context, m messages.PortalAudit) {
	if s.audit == nil {
		return
	}
	s.audit.Publish(ctx, m)
}

// HashPassword — для административного создания аккаунтов и фикстур.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(b), nil
}
