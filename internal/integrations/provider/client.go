package provider

import (
	"context"
	"fmt"

	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/pkg/errors"
)

// Классификация отказов провайдера. Оркестратор деградирует по-разному в
// зависимости от вида, поэтому адаптер обязан различать их, а не возвращать
// один общий error.
type ErrorKind string

const (
	ErrNotConfigured    ErrorKind = "not_configured"
	ErrRateLimited      ErrorKind = "rate_limited"
	ErrUnreachable      ErrorKind = "unreachable"
	ErrUpstreamRejected ErrorKind = "upstream_rejected"
	ErrUpstreamFault    ErrorKind = "upstream_fault"
)

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider: %s", e.Kind)
	}
	return fmt.Sprintf("provider: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf достаёт вид провайдерской ошибки из цепочки wrap-ов.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// Client — один вызов, одна попытка. Retry-политика, если она нужна,
// принадлежит оркестратору.
type Client interface {
	FetchLive(ctx context.Context, query models.TrackingQuery) (models.TrackingResult, error)
}
