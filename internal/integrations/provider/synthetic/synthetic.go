package synthetic

import (
	"hash/fnv"
	"time"

	"github.com/HarborBit/ShipPortal/internal/models"
)

// Generator выдаёт правдоподобный schema-complete результат, когда живой
// провайдер недоступен или не настроен. Детерминирован по номеру: один и тот
// же запрос даёт один и тот же рейс.
type Generator struct{}

func New() *Generator { return &Generator{} }

var vessels = []models.Vessel{
	{Name: "EVER GIVEN", IMO: "9811000", MMSI: "353136000"},
	{Name: "MSC OSCAR", IMO: "9703291", MMSI: "255805942"},
	{Name: "CMA CGM MARCO POLO", IMO: "9454436", MMSI: "228403000"},
	{Name: "MAERSK ESSEX", IMO: "9456783", MMSI: "219018501"},
	{Name: "COSCO SHIPPING UNIVERSE", IMO: "9795610", MMSI: "477333400"},
}

var routes = []models.Route{
	{PortOfLoading: "SHANGHAI", PortOfDischarge: "ROTTERDAM"},
	{PortOfLoading: "SINGAPORE", PortOfDischarge: "HAMBURG"},
	{PortOfLoading: "BUSAN", PortOfDischarge: "LOS ANGELES"},
	{PortOfLoading: "NINGBO", PortOfDischarge: "ANTWERP"},
	{PortOfLoading: "SHENZHEN", PortOfDischarge: "FELIXSTOWE"},
}

// Synthesize никогда не падает: при невалидном запросе идентификатор просто
// остаётся пустым, схема результата всё равно полная.
func (g *Generator) Synthesize(query models.TrackingQuery) models.TrackingResult {
	kind, value, err := query.Identifier()
	if err != nil {
		kind, value = models.QueryByContainer, ""
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	v := h.Sum32()

	vessel := vessels[v%uint32(len(vessels))]
	route := routes[(v/7)%uint32(len(routes))]

	now := time.Now().UTC()
	departed := now.Add(-10 * 24 * time.Hour)
	loaded := departed.Add(-36 * time.Hour)
	arrival := now.Add(14 * 24 * time.Hour)

	co2 := 0.5 + float64(v%200)/100.0
	transit := float64(18 + v%21)

	return models.TrackingResult{
		IdentifierEcho: value,
		QueryKind:      kind,
		Status:         models.TrackingStatusInTransit,
		Vessel:         vessel,
		Route:          route,
		Milestones: []models.Milestone{
			{
				Event:        "Gate In",
				Location:     route.PortOfLoading,
				TimestampUTC: loaded,
				State:        models.MilestoneCompleted,
				Description:  "Container loaded at " + route.PortOfLoading,
			},
			{
				Event:        "Departure",
				Location:     route.PortOfLoading,
				TimestampUTC: departed,
				State:        models.MilestoneCompleted,
				Description:  "Vessel departed " + route.PortOfLoading,
			},
			{
				Event:        "In Transit",
				Location:     "Open sea",
				TimestampUTC: now,
				State:        models.MilestoneInProgress,
				Description:  "Vessel underway to " + route.PortOfDischarge,
			},
			{
				Event:        "Arrival",
				Location:     route.PortOfDischarge,
				TimestampUTC: arrival,
				State:        models.MilestonePending,
				Description:  "Estimated arrival at " + route.PortOfDischarge,
			},
		},
		Location: &models.GeoPoint{
			Latitude:  float64(int32(v%140)) - 70,
			Longitude: float64(int32((v/3)%360)) - 180,
		},
		CO2Emissions:    &co2,
		TransitTimeDays: &transit,
		SourceKind:      models.SourceFallback,
		FetchedAtUTC:    now,
	}
}
