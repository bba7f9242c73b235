package models

import "time"

// Способы входа в портал. Один аккаунт доступен по нескольким ключам.
type IdentifierKind string

const (
	IdentifierTrackingNumber IdentifierKind = "trackingNumber"
	IdentifierCustomerNumber IdentifierKind = "customerNumber"
	IdentifierDirectToken    IdentifierKind = "directToken"
)

func (k IdentifierKind) Valid() bool {
	switch k {
	case IdentifierTrackingNumber, IdentifierCustomerNumber, IdentifierDirectToken:
		return true
	}
	return false
}

type Account struct {
	ID             uint64
	TrackingNumber string
	CustomerNumber *string

	PasswordHash string

	IsActive        bool
	HasPortalAccess bool

	// Одноразовая ссылка для входа без пароля. Токен не уничтожается при
	// использовании, доступ ограничен только сроком действия.
	DirectAccessToken *string
	TokenExpiresAt    *time.Time

	LastLogin *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type AccountCreateInput struct {
	TrackingNumber string
	CustomerNumber *string
	PasswordHash   string

	IsActive        bool
	HasPortalAccess bool

	DirectAccessToken *string
	TokenExpiresAt    *time.Time
}

// AccountSummary — то, что уходит наружу после успешного resolve.
// Хэши и токены не возвращаем.
type AccountSummary struct {
	ID             uint64     `json:"id"`
	TrackingNumber string     `json:"trackingNumber"`
	CustomerNumber string     `json:"customerNumber,omitempty"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
}

func (a *Account) Summary() AccountSummary {
	s := AccountSummary{
		ID:             a.ID,
		TrackingNumber: a.TrackingNumber,
		LastLogin:      a.LastLogin,
	}
	if a.CustomerNumber != nil {
		s.CustomerNumber = *a.CustomerNumber
	}
	return s
}
