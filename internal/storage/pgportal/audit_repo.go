package pgportal

import (
	"context"

	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) InsertAuditEntry(ctx context.Context, e models.AuditEntry) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO portal_audit (
  kind, account_id, identifier_kind, identifier, outcome, source_kind, at, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
`, e.Kind, e.AccountID, e.IdentifierKind, e.Identifier, e.Outcome, e.SourceKind, e.At.UTC())
	return errors.Wrap(err, "insert audit entry")
}

func (s *Storage) ListAuditEntries(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, kind, account_id, identifier_kind, identifier, outcome, source_kind, at, created_at
FROM portal_audit
ORDER BY at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select audit entries")
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.Kind, &e.AccountID, &e.IdentifierKind, &e.Identifier,
			&e.Outcome, &e.SourceKind, &e.At, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan audit entry")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
