package portal_api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/HarborBit/ShipPortal/internal/models"
	"github.com/HarborBit/ShipPortal/internal/services/identity"
	"github.com/HarborBit/ShipPortal/internal/services/tracking"
	"github.com/go-chi/chi/v5"
)

type AuditLister interface {
	List(ctx context.Context, limit, offset int) ([]*models.AuditEntry, error)
}

type PortalAPI struct {
	identity *identity.Service
	tracking *tracking.Service
	audit    AuditLister
}

func New(identitySvc *identity.Service, trackingSvc *tracking.Service, auditSvc AuditLister) *PortalAPI {
	return &PortalAPI{identity: identitySvc, tracking: trackingSvc, audit: auditSvc}
}

func (a *PortalAPI) Routes(r chi.Router) {
	r.Post("/v1/resolve-identity", a.resolveIdentity)
	r.Get("/v1/track", a.track)
	r.Get("/v1/audit", a.listAudit)
}

type resolveIdentityRequest struct {
	Kind     string `json:"kind"`
	Value    string `json:"value"`
	Password string `json:"password,omitempty"`
}

func (a *PortalAPI) resolveIdentity(w http.ResponseWriter, r *http.Request) {
	var req resolveIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	kind := models.IdentifierKind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be one of trackingNumber, customerNumber, directToken")
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	acc, err := a.identity.Resolve(r.Context(), kind, req.Value, req.Password)
	if err != nil {
		if authKind, ok := identity.AuthKindOf(err); ok {
			// Все виды отказов сведены к одному 401: по ответу нельзя понять,
			// существует ли номер. Причина остаётся только в логах и аудите.
			slog.Info("resolve identity rejected", "kind", string(kind), "reason", string(authKind))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		slog.Error("resolve identity", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, acc.Summary())
}

func (a *PortalAPI) track(w http.ResponseWriter, r *http.Request) {
	q := models.TrackingQuery{
		ContainerNumber:    r.URL.Query().Get("container"),
		BillOfLadingNumber: r.URL.Query().Get("bl"),
		BookingNumber:      r.URL.Query().Get("booking"),
	}
	// Диагностический режим: fallback=false отдаёт реальное здоровье провайдера.
	allowFallback := r.URL.Query().Get("fallback") != "false"

	res, err := a.tracking.Track(r.Context(), q, allowFallback)
	if err != nil {
		if errors.Is(err, models.ErrExactlyOneIdentifier) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if kind, ok := tracking.TrackKindOf(err); ok {
			switch kind {
			case tracking.TrackNotFound:
				writeError(w, http.StatusNotFound, "identifier is not known to the tracking provider")
			case tracking.TrackRateLimited:
				writeError(w, http.StatusTooManyRequests, "tracking provider rate limit reached")
			default:
				writeError(w, http.StatusServiceUnavailable, "tracking provider is unavailable")
			}
			return
		}
		slog.Error("track", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *PortalAPI) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 100)
	offset := parseIntParam(r, "offset", 0)

	entries, err := a.audit.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list audit", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntParam(r *http.Request, name string, def int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}
