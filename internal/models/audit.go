package models

import "time"

// Виды событий портала, попадающих в аудит.
const (
	AuditKindLogin    = "login"
	AuditKindTracking = "tracking"
)

type AuditEntry struct {
	ID   uint64 `json:"id"`
	Kind string `json:"kind"`

	AccountID *uint64 `json:"accountId,omitempty"`

	IdentifierKind string `json:"identifierKind"`
	Identifier     string `json:"identifier"`

	// Для login: success | not_found | invalid_credentials | token_expired |
	// inactive | no_portal_access. Для tracking: ok | not_found |
	// rate_limited | service_unavailable.
	Outcome string `json:"outcome"`

	// Для tracking: live | fallback.
	SourceKind string `json:"sourceKind,omitempty"`

	At        time.Time `json:"at"`
	CreatedAt time.Time `json:"createdAt"`
}
