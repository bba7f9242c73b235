package models

import (
	"errors"
	"strings"
	"time"
)

// Нормализованные статусы (можно расширять). Неизвестные значения провайдера
// проходят как есть, в верхнем регистре.
const (
	TrackingStatusUnknown   = "UNKNOWN"
	TrackingStatusPending   = "PENDING"
	TrackingStatusInTransit = "IN_TRANSIT"
	TrackingStatusAtPort    = "AT_PORT"
	TrackingStatusDelivered = "DELIVERED"
)

type QueryKind string

const (
	QueryByContainer    QueryKind = "container"
	QueryByBillOfLading QueryKind = "billOfLading"
	QueryByBooking      QueryKind = "booking"
)

type SourceKind string

const (
	SourceLive     SourceKind = "live"
	SourceFallback SourceKind = "fallback"
)

type MilestoneState string

const (
	MilestoneCompleted  MilestoneState = "completed"
	MilestoneInProgress MilestoneState = "inProgress"
	MilestonePending    MilestoneState = "pending"
)

var ErrExactlyOneIdentifier = errors.New("exactly one of container, billOfLading or booking is required")

// TrackingQuery — неизменяемый запрос на трекинг. Ровно одно поле должно
// быть заполнено; всё остальное — ошибка валидации, а не "угадывание".
type TrackingQuery struct {
	ContainerNumber    string
	BillOfLadingNumber string
	BookingNumber      string
}

// Identifier возвращает вид и нормализованное (upper-case, trimmed) значение
// единственного заполненного поля.
func (q TrackingQuery) Identifier() (QueryKind, string, error) {
	var kind QueryKind
	var value string
	n := 0
	for _, f := range []struct {
		kind QueryKind
		val  string
	}{
		{QueryByContainer, q.ContainerNumber},
		{QueryByBillOfLading, q.BillOfLadingNumber},
		{QueryByBooking, q.BookingNumber},
	} {
		v := strings.TrimSpace(f.val)
		if v == "" {
			continue
		}
		n++
		kind = f.kind
		value = strings.ToUpper(v)
	}
	if n != 1 {
		return "", "", ErrExactlyOneIdentifier
	}
	return kind, value, nil
}

type Vessel struct {
	Name string `json:"name"`
	IMO  string `json:"imo"`
	MMSI string `json:"mmsi"`
}

type Route struct {
	PortOfLoading   string `json:"portOfLoading"`
	PortOfDischarge string `json:"portOfDischarge"`
}

type Milestone struct {
	Event        string         `json:"event"`
	Location     string         `json:"location"`
	TimestampUTC time.Time      `json:"timestampUtc"`
	State        MilestoneState `json:"state"`
	Description  string         `json:"description"`
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TrackingResult — канонический ответ независимо от источника. Fallback обязан
// удовлетворять той же схеме, что и live: никаких частичных форм.
type TrackingResult struct {
	IdentifierEcho string    `json:"identifierEcho"`
	QueryKind      QueryKind `json:"queryKind"`
	Status         string    `json:"status"`

	Vessel Vessel `json:"vessel"`
	Route  Route  `json:"route"`

	// Отсортированы по timestampUtc по неубыванию.
	Milestones []Milestone `json:"milestones"`

	Location        *GeoPoint `json:"location,omitempty"`
	CO2Emissions    *float64  `json:"co2Emissions,omitempty"`
	TransitTimeDays *float64  `json:"transitTimeDays,omitempty"`

	SourceKind   SourceKind `json:"sourceKind"`
	FetchedAtUTC time.Time  `json:"fetchedAtUtc"`
}
