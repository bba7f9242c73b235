package shipsgohttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HarborBit/ShipPortal/internal/integrations/provider"
	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/pkg/errors"
)

const defaultTimeout = 15 * time.Second

// Client говорит с ShipsGo ContainerService: сначала регистрируем номер
// (форма), потом опрашиваем по requestId (query-параметры). Обе фазы вместе
// ограничены одним таймаутом.
type Client struct {
	baseURL  string
	authCode string
	timeout  time.Duration
	httpc    *http.Client
}

func New(baseURL, authCode string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://shipsgo.com/api/v1.1"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  baseURL,
		authCode: authCode,
		timeout:  timeout,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type registerResp struct {
	RequestID json.Number `json:"requestId"`
	Message   string      `json:"message"`
}

type shipsgoDate struct {
	Date     string `json:"Date"`
	IsActual bool   `json:"IsActual"`
}

type shipsgoInfo struct {
	ContainerNumber string `json:"ContainerNumber"`
	BlReferenceNo   string `json:"BlReferenceNo"`

	Status   string `json:"Status"`
	StatusID int    `json:"StatusId"`

	Vessel     string `json:"Vessel"`
	VesselIMO  string `json:"VesselIMO"`
	VesselMMSI string `json:"VesselMMSI"`

	Pol string `json:"Pol"`
	Pod string `json:"Pod"`

	GateInDate    shipsgoDate `json:"GateInDate"`
	DepartureDate shipsgoDate `json:"DepartureDate"`
	ArrivalDate   shipsgoDate `json:"ArrivalDate"`
	GateOutDate   shipsgoDate `json:"GateOutDate"`

	VesselLatitude  *float64 `json:"VesselLatitude"`
	VesselLongitude *float64 `json:"VesselLongitude"`

	Co2Emission         *float64 `json:"Co2Emission"`
	FormatedTransitTime string   `json:"FormatedTransitTime"`
}

func (c *Client) FetchLive(ctx context.Context, query models.TrackingQuery) (models.TrackingResult, error) {
	kind, value, err := query.Identifier()
	if err != nil {
		return models.TrackingResult{}, err
	}

	if c.authCode == "" {
		return models.TrackingResult{}, provider.NewError(provider.ErrNotConfigured, nil)
	}

	// Общий дедлайн на обе фазы: деградировавший провайдер не должен
	// держать вызывающего дольше таймаута.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID, err := c.register(ctx, kind, value)
	if err != nil {
		return models.TrackingResult{}, err
	}

	info, err := c.poll(ctx, requestID)
	if err != nil {
		return models.TrackingResult{}, err
	}

	return mapInfo(kind, value, info), nil
}

// register ставит номер на трекинг. Повторная регистрация уже известного
// номера у ShipsGo не ошибка. Если requestId в ответе нет — используем сам
// номер (документированная причуда протокола).
func (c *Client) register(ctx context.Context, kind models.QueryKind, value string) (string, error) {
	form := url.Values{}
	form.Set("authCode", c.authCode)
	switch kind {
	case models.QueryByBillOfLading:
		form.Set("blContainersRef", value)
	case models.QueryByBooking:
		form.Set("bookingNumber", value)
	default:
		form.Set("containerNumber", value)
	}
	form.Set("shippingLine", "OTHERS")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/ContainerService/ShipsGoApi", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "new register request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", provider.NewError(provider.ErrUnreachable, errors.Wrap(err, "register"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", provider.NewError(provider.ErrUnreachable, errors.Wrap(err, "read register body"))
	}

	if kindErr := classifyStatus(resp.StatusCode); kindErr != "" {
		// "Already tracked" приходит как 4xx с пояснением — это успех.
		if kindErr == provider.ErrUpstreamRejected && containsAlreadyTracked(body) {
			return value, nil
		}
		return "", provider.NewError(kindErr, fmt.Errorf("register http %d", resp.StatusCode))
	}

	var rr registerResp
	if err := json.Unmarshal(body, &rr); err != nil {
		// Некоторые аккаунты получают plain-text ответ; трекаем по номеру.
		return value, nil
	}
	if rr.RequestID.String() == "" {
		return value, nil
	}
	return rr.RequestID.String(), nil
}

func (c *Client) poll(ctx context.Context, requestID string) (shipsgoInfo, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return shipsgoInfo{}, errors.Wrap(err, "parse base url")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ContainerService/GetContainerInfo/"

	q := u.Query()
	q.Set("authCode", c.authCode)
	q.Set("requestId", requestID)
	q.Set("mapPoint", "true")
	q.Set("co2", "true")
	q.Set("containerType", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return shipsgoInfo{}, errors.Wrap(err, "new poll request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return shipsgoInfo{}, provider.NewError(provider.ErrUnreachable, errors.Wrap(err, "poll"))
	}
	defer resp.Body.Close()

	if kindErr := classifyStatus(resp.StatusCode); kindErr != "" {
		return shipsgoInfo{}, provider.NewError(kindErr, fmt.Errorf("poll http %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return shipsgoInfo{}, provider.NewError(provider.ErrUnreachable, errors.Wrap(err, "read poll body"))
	}

	info, err := normalizeBody(body)
	if err != nil {
		return shipsgoInfo{}, err
	}
	return info, nil
}

// normalizeBody сводит обе формы ответа (объект или массив из одного
// элемента) к одному объекту до любого маппинга полей.
func normalizeBody(body []byte) (shipsgoInfo, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var arr []shipsgoInfo
		if err := json.Unmarshal(body, &arr); err != nil {
			return shipsgoInfo{}, provider.NewError(provider.ErrUpstreamFault, errors.Wrap(err, "decode array"))
		}
		if len(arr) == 0 {
			return shipsgoInfo{}, provider.NewError(provider.ErrUpstreamRejected, errors.New("empty result set"))
		}
		return arr[0], nil
	}

	var one shipsgoInfo
	if err := json.Unmarshal(body, &one); err != nil {
		return shipsgoInfo{}, provider.NewError(provider.ErrUpstreamFault, errors.Wrap(err, "decode object"))
	}
	return one, nil
}

func classifyStatus(code int) provider.ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return provider.ErrRateLimited
	case code/100 == 4:
		return provider.ErrUpstreamRejected
	case code/100 == 5:
		return provider.ErrUpstreamFault
	}
	return ""
}

func containsAlreadyTracked(body []byte) bool {
	low := strings.ToLower(string(body))
	return strings.Contains(low, "already")
}

// mapInfo — защитный маппинг: у каждого выходного поля есть явный дефолт,
// отсутствующий ключ провайдера никогда не протекает наружу.
func mapInfo(kind models.QueryKind, value string, info shipsgoInfo) models.TrackingResult {
	res := models.TrackingResult{
		IdentifierEcho: value,
		QueryKind:      kind,
		Status:         mapStatus(info.Status),
		Vessel: models.Vessel{
			Name: info.Vessel,
			IMO:  info.VesselIMO,
			MMSI: info.VesselMMSI,
		},
		Route: models.Route{
			PortOfLoading:   info.Pol,
			PortOfDischarge: info.Pod,
		},
		Milestones:   mapMilestones(info),
		SourceKind:   models.SourceLive,
		FetchedAtUTC: time.Now().UTC(),
	}

	if info.VesselLatitude != nil && info.VesselLongitude != nil {
		res.Location = &models.GeoPoint{
			Latitude:  *info.VesselLatitude,
			Longitude: *info.VesselLongitude,
		}
	}
	res.CO2Emissions = info.Co2Emission
	res.TransitTimeDays = parseTransitDays(info.FormatedTransitTime)

	return res
}

func mapStatus(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return models.TrackingStatusUnknown
	case "SAILING", "TRANSSHIPMENT", "IN TRANSIT":
		return models.TrackingStatusInTransit
	case "ARRIVED", "DISCHARGED":
		return models.TrackingStatusAtPort
	case "DELIVERED", "EMPTY RETURNED", "GATE OUT":
		return models.TrackingStatusDelivered
	case "BOOKED", "LOADED", "GATE IN", "UNTRACKABLE":
		return models.TrackingStatusPending
	default:
		return strings.ToUpper(strings.TrimSpace(raw))
	}
}

func mapMilestones(info shipsgoInfo) []models.Milestone {
	var out []models.Milestone

	type step struct {
		event    string
		location string
		d        shipsgoDate
	}
	steps := []step{
		{"Gate In", info.Pol, info.GateInDate},
		{"Departure", info.Pol, info.DepartureDate},
		{"Arrival", info.Pod, info.ArrivalDate},
		{"Gate Out", info.Pod, info.GateOutDate},
	}
	for _, s := range steps {
		ts, ok := parseProviderTime(s.d.Date)
		if !ok {
			continue
		}
		state := models.MilestonePending
		if s.d.IsActual {
			state = models.MilestoneCompleted
		}
		out = append(out, models.Milestone{
			Event:        s.event,
			Location:     s.location,
			TimestampUTC: ts,
			State:        state,
			Description:  s.event + " " + s.location,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampUTC.Before(out[j].TimestampUTC)
	})
	return out
}

func parseProviderTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"01/02/2006 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ShipsGo отдаёт транзит как "24 Days"; вытаскиваем число, иначе nil.
func parseTransitDays(s string) *float64 {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return &v
}
