package pgportal

import (
	"context"
	"time"

	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const accountColumns = `
  id, tracking_number, customer_number, password_hash,
  is_active, has_portal_access,
  direct_access_token, token_expires_at, last_login,
  created_at, updated_at`

// FindBy* возвращают (nil, nil), если аккаунта нет: "не найдено" — не сбой
// хранилища, это решение принимает identity-сервис.

func (s *Storage) FindAccountByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Account, error) {
	return s.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tracking_number = $1`, trackingNumber)
}

func (s *Storage) FindAccountByCustomerNumber(ctx context.Context, customerNumber string) (*models.Account, error) {
	return s.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE customer_number = $1`, customerNumber)
}

func (s *Storage) FindAccountByDirectToken(ctx context.Context, token string) (*models.Account, error) {
	return s.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE direct_access_token = $1`, token)
}

func (s *Storage) findAccount(ctx context.Context, query, arg string) (*models.Account, error) {
	var a models.Account
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.TrackingNumber, &a.CustomerNumber, &a.PasswordHash,
		&a.IsActive, &a.HasPortalAccess,
		&a.DirectAccessToken, &a.TokenExpiresAt, &a.LastLogin,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select account")
	}
	return &a, nil
}

func (s *Storage) TouchLastLogin(ctx context.Context, id uint64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE accounts SET last_login = now(), updated_at = now() WHERE id = $1`, id)
	return errors.Wrap(err, "touch last login")
}

func (s *Storage) CreateAccount(ctx context.Context, in models.AccountCreateInput) (*models.Account, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO accounts (
  tracking_number, customer_number, password_hash,
  is_active, has_portal_access,
  direct_access_token, token_expires_at,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
RETURNING id
`, in.TrackingNumber, in.CustomerNumber, in.PasswordHash,
		in.IsActive, in.HasPortalAccess,
		in.DirectAccessToken, in.TokenExpiresAt, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert account")
	}

	return s.FindAccountByTrackingNumber(ctx, in.TrackingNumber)
}
