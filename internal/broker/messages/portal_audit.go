package messages

import "time"

// PortalAudit — событие активности портала: исходы логинов по внутренним
// видам ошибок и факты показа трекинга с источником данных. Публикуется
// fire-and-forget из portal-api, пишется в БД audit-worker-ом.
type PortalAudit struct {
	Kind string `json:"kind"` // login | tracking

	AccountID *uint64 `json:"account_id,omitempty"`

	IdentifierKind string `json:"identifier_kind,omitempty"`
	Identifier     string `json:"identifier,omitempty"`

	Outcome    string `json:"outcome"`
	SourceKind string `json:"source_kind,omitempty"`

	At time.Time `json:"at"`
}
