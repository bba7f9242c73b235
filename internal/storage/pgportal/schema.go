package pgportal

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS accounts (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  customer_number TEXT NULL,
  password_hash TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  has_portal_access BOOLEAN NOT NULL DEFAULT TRUE,
  direct_access_token TEXT NULL,
  token_expires_at TIMESTAMPTZ NULL,
  last_login TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (tracking_number)
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_accounts_customer_number ON accounts(customer_number) WHERE customer_number IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_direct_access_token ON accounts(direct_access_token) WHERE direct_access_token IS NOT NULL`,
		`
CREATE TABLE IF NOT EXISTS portal_audit (
  id BIGSERIAL PRIMARY KEY,
  kind TEXT NOT NULL,
  account_id BIGINT NULL REFERENCES accounts(id) ON DELETE SET NULL,
  identifier_kind TEXT NOT NULL DEFAULT '',
  identifier TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL,
  source_kind TEXT NOT NULL DEFAULT '',
  at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_portal_audit_at ON portal_audit(at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_portal_audit_account_id ON portal_audit(account_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
