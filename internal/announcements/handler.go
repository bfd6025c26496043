package announcements

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pelita-edu/pelita/internal/authz"
	"github.com/pelita-edu/pelita/internal/observability"
	"github.com/pelita-edu/pelita/internal/platform/httpx"
	"github.com/pelita-edu/pelita/internal/shared"
	"github.com/pelita-edu/pelita/internal/tenant"
)

// Handler exposes the announcement operations over HTTP. It is a thin shell:
// all gating lives in the service, the handler only shuttles JSON and maps
// error kinds to status codes.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *observability.Metrics
}

// NewHandler constructs a Handler. metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics}
}

// MountRoutes attaches announcement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/announcements", h.List)
	r.Post("/announcements", h.Create)
	r.Get("/announcements/{id}", h.Show)
	r.Put("/announcements/{id}", h.Update)
	r.Delete("/announcements/{id}", h.Delete)
	r.Post("/announcements/{id}/published", h.SetPublished)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAnnouncementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	tenantID, _ := tenant.FromContext(r.Context())

	created, aerr := h.service.Create(r.Context(), sess, tenantID, req)
	h.observe(authz.ActionCreate, aerr)
	if aerr != nil {
		h.respondError(w, aerr)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	tenantID, _ := tenant.FromContext(r.Context())

	a, aerr := h.service.Get(r.Context(), sess, tenantID, chi.URLParam(r, "id"))
	h.observe(authz.ActionRead, aerr)
	if aerr != nil {
		h.respondError(w, aerr)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateAnnouncementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	tenantID, _ := tenant.FromContext(r.Context())

	updated, aerr := h.service.Update(r.Context(), sess, tenantID, chi.URLParam(r, "id"), req)
	h.observe(authz.ActionUpdate, aerr)
	if aerr != nil {
		h.respondError(w, aerr)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	tenantID, _ := tenant.FromContext(r.Context())

	aerr := h.service.Delete(r.Context(), sess, tenantID, chi.URLParam(r, "id"))
	h.observe(authz.ActionDelete, aerr)
	if aerr != nil {
		h.respondError(w, aerr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetPublished(w http.ResponseWriter, r *http.Request) {
	var req SetPublishedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	tenantID, _ := tenant.FromContext(r.Context())

	updated, aerr := h.service.SetPublished(r.Context(), sess, tenantID, chi.URLParam(r, "id"), req)
	h.observe(authz.ActionPublish, aerr)
	if aerr != nil {
		h.respondError(w, aerr)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListAnnouncementsRequest{
		Search: strings.TrimSpace(q.Get("search")),
		Sort:   q.Get("sort"),
	}
	if raw := q.Get("scope"); raw != "" {
		scope := authz.Scope(strings.ToUpper(raw))
		req.Scope = &scope
	}
	if raw := q.Get("published"); raw != "" {
		published := raw == "true" || raw == "1"
		req.Published = &published
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		req.Page = page
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil {
		req.PerPage = perPage
	}

	sess := shared.SessionFromContext(r.Context())
	tenantID, _ := tenant.FromContext(r.Context())

	result, aerr := h.service.List(r.Context(), sess, tenantID, req)
	h.observe(authz.ActionRead, aerr)
	if aerr != nil {
		h.respondError(w, aerr)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondError(w http.ResponseWriter, aerr *shared.ActionError) {
	switch aerr.Kind {
	case shared.KindNotAuthenticated:
		httpx.Problem(w, http.StatusUnauthorized, "Not Authenticated", aerr.Message)
	case shared.KindMissingTenant:
		httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", aerr.Message)
	case shared.KindValidation:
		httpx.ProblemWithFields(w, http.StatusBadRequest, "Validation Failed", aerr.Message, aerr.Fields)
	case shared.KindNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", aerr.Message)
	case shared.KindScopeDenied, shared.KindUnauthorized:
		httpx.Problem(w, http.StatusForbidden, "Forbidden", aerr.Message)
	default:
		if h.logger != nil {
			h.logger.Error("announcement handler", slog.Any("error", aerr.Unwrap()))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) observe(action authz.Action, aerr *shared.ActionError) {
	if h.metrics == nil {
		return
	}
	outcome := "allow"
	if aerr != nil {
		outcome = string(aerr.Kind)
	}
	h.metrics.ObserveDecision(string(action), outcome)
}
