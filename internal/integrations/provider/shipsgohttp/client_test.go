package shipsgohttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HarborBit/ShipPortal/internal/integrations/provider"
	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/stretchr/testify/require"
)

func containerQuery(n string) models.TrackingQuery {
	return models.TrackingQuery{ContainerNumber: n}
}

func TestClient_FetchLive_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ContainerService/ShipsGoApi":
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			require.Equal(t, "demo", r.PostForm.Get("authCode"))
			require.Equal(t, "ABCD1234567", r.PostForm.Get("containerNumber"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"requestId": 42}`))
		case "/ContainerService/GetContainerInfo/":
			require.Equal(t, "demo", r.URL.Query().Get("authCode"))
			require.Equal(t, "42", r.URL.Query().Get("requestId"))
			require.Equal(t, "true", r.URL.Query().Get("mapPoint"))
			require.Equal(t, "true", r.URL.Query().Get("co2"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{
  "ContainerNumber": "ABCD1234567",
  "Status": "SAILING",
  "Vessel": "MSC AURIGA",
  "VesselIMO": "9484455",
  "Pol": "SHANGHAI",
  "Pod": "ROTTERDAM",
  "GateInDate": {"Date": "2025-01-01T08:00:00", "IsActual": true},
  "DepartureDate": {"Date": "2025-01-03T16:00:00", "IsActual": true},
  "ArrivalDate": {"Date": "2025-02-01T06:00:00", "IsActual": false},
  "VesselLatitude": 1.25,
  "VesselLongitude": 103.8,
  "Co2Emission": 1.4,
  "FormatedTransitTime": "29 Days"
}]`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", 0)
	res, err := c.FetchLive(context.Background(), containerQuery("abcd1234567"))
	require.NoError(t, err)

	require.Equal(t, "ABCD1234567", res.IdentifierEcho)
	require.Equal(t, models.QueryByContainer, res.QueryKind)
	require.Equal(t, models.TrackingStatusInTransit, res.Status)
	require.Equal(t, "MSC AURIGA", res.Vessel.Name)
	require.Equal(t, "SHANGHAI", res.Route.PortOfLoading)
	require.Equal(t, "ROTTERDAM", res.Route.PortOfDischarge)
	require.Equal(t, models.SourceLive, res.SourceKind)

	require.Len(t, res.Milestones, 3)
	for i := 1; i < len(res.Milestones); i++ {
		require.False(t, res.Milestones[i].TimestampUTC.Before(res.Milestones[i-1].TimestampUTC))
	}
	require.Equal(t, models.MilestoneCompleted, res.Milestones[0].State)
	require.Equal(t, models.MilestonePending, res.Milestones[2].State)

	require.NotNil(t, res.Location)
	require.InDelta(t, 103.8, res.Location.Longitude, 0.001)
	require.NotNil(t, res.CO2Emissions)
	require.NotNil(t, res.TransitTimeDays)
	require.InDelta(t, 29, *res.TransitTimeDays, 0.001)
}

func TestClient_FetchLive_ObjectBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ContainerService/ShipsGoApi" {
			_, _ = w.Write([]byte(`{"requestId": "77"}`))
			return
		}
		// Та же логическая нагрузка, но объектом, не массивом.
		_, _ = w.Write([]byte(`{"ContainerNumber":"ABCD1234567","Status":"Discharged"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", 0)
	res, err := c.FetchLive(context.Background(), containerQuery("ABCD1234567"))
	require.NoError(t, err)
	require.Equal(t, models.TrackingStatusAtPort, res.Status)
	require.Empty(t, res.Milestones)
	require.Nil(t, res.Location)
	require.Nil(t, res.CO2Emissions)
}

func TestClient_FetchLive_AlreadyTrackedRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ContainerService/ShipsGoApi" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Container Already Exists"}`))
			return
		}
		// requestId отсутствовал — опрос идёт по самому номеру.
		require.Equal(t, "ABCD1234567", r.URL.Query().Get("requestId"))
		_, _ = w.Write([]byte(`[{"Status":"Sailing"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", 0)
	res, err := c.FetchLive(context.Background(), containerQuery("ABCD1234567"))
	require.NoError(t, err)
	require.Equal(t, models.TrackingStatusInTransit, res.Status)
}

func TestClient_FetchLive_NotConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no HTTP call expected when authCode is empty")
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	_, err := c.FetchLive(context.Background(), containerQuery("ABCD1234567"))
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.ErrNotConfigured, kind)
}

func TestClient_FetchLive_ErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		code     int
		wantKind provider.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, provider.ErrRateLimited},
		{"rejected", http.StatusNotFound, provider.ErrUpstreamRejected},
		{"fault", http.StatusInternalServerError, provider.ErrUpstreamFault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/ContainerService/ShipsGoApi" {
					_, _ = w.Write([]byte(`{"requestId": 1}`))
					return
				}
				w.WriteHeader(tc.code)
			}))
			defer srv.Close()

			c := New(srv.URL, "demo", 0)
			_, err := c.FetchLive(context.Background(), containerQuery("ABCD1234567"))
			kind, ok := provider.KindOf(err)
			require.True(t, ok)
			require.Equal(t, tc.wantKind, kind)
		})
	}
}

func TestClient_FetchLive_EmptyArrayIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ContainerService/ShipsGoApi" {
			_, _ = w.Write([]byte(`{"requestId": 1}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", 0)
	_, err := c.FetchLive(context.Background(), containerQuery("ABCD1234567"))
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.ErrUpstreamRejected, kind)
}

func TestClient_FetchLive_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL, "demo", time.Second)
	_, err := c.FetchLive(context.Background(), containerQuery("ABCD1234567"))
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.ErrUnreachable, kind)
}

func TestClient_FetchLive_TruncatedRegisterBody(t *testing.T) {
	// Content-Length обещает больше, чем пришло: чтение тела обрывается.
	// Это сбой связи, а не повод трекать по сырому номеру.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte(`{"requestId":`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", time.Second)
	_, err := c.FetchLive(context.Background(), containerQuery("ABCD1234567"))
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.ErrUnreachable, kind)
}

func TestClient_FetchLive_InvalidQuery(t *testing.T) {
	c := New("http://localhost:0", "demo", 0)
	_, err := c.FetchLive(context.Background(), models.TrackingQuery{})
	require.ErrorIs(t, err, models.ErrExactlyOneIdentifier)
}

func TestMapStatus(t *testing.T) {
	require.Equal(t, models.TrackingStatusInTransit, mapStatus("Sailing"))
	require.Equal(t, models.TrackingStatusAtPort, mapStatus("ARRIVED"))
	require.Equal(t, models.TrackingStatusDelivered, mapStatus("Empty Returned"))
	require.Equal(t, models.TrackingStatusUnknown, mapStatus(""))
	// Незнакомые статусы проходят как есть, в верхнем регистре.
	require.Equal(t, "CUSTOMS HOLD", mapStatus("Customs Hold"))
}

func TestParseTransitDays(t *testing.T) {
	require.Nil(t, parseTransitDays(""))
	require.Nil(t, parseTransitDays("soon"))
	v := parseTransitDays("24 Days")
	require.NotNil(t, v)
	require.InDelta(t, 24, *v, 0.001)
}
