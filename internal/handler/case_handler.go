package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"auxilium-api/internal/middleware"
	"auxilium-api/internal/model"
	"auxilium-api/pkg/apierror"
)

type caseService interface {
	Get(ctx context.Context, principal model.Principal, caseID string) (model.Case, error)
	Mine(ctx context.Context, principal model.Principal, page model.Page) (model.CaseList, error)
	Assigned(ctx context.Context, principal model.Principal, page model.Page) (model.CaseList, error)
	All(ctx context.Context, principal model.Principal, assignedTo string, page model.Page) (model.CaseList, error)
}

type CaseHandler struct {
	service caseService
}

func NewCaseHandler(service caseService) *CaseHandler {
	return &CaseHandler{service: service}
}

func (h *CaseHandler) Mine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, p model.Principal, q model.CaseQuery, page model.Page) (model.CaseList, error) {
		return h.service.Mine(ctx, p, page)
	})
}

func (h *CaseHandler) Assigned(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, p model.Principal, q model.CaseQuery, page model.Page) (model.CaseList, error) {
		return h.service.Assigned(ctx, p, page)
	})
}

func (h *CaseHandler) All(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context, p model.Principal, q model.CaseQuery, page model.Page) (model.CaseList, error) {
		return h.service.All(ctx, p, q.AssignedTo, page)
	})
}

func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthenticated(""))
		return
	}

	caseID := strings.TrimSpace(chi.URLParam(r, "case_id"))
	if caseID == "" {
		writeError(w, apierror.BadRequest("case id is required", "case_id"))
		return
	}

	c, err := h.service.Get(r.Context(), principal, caseID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, c, nil)
}

type listFunc func(ctx context.Context, p model.Principal, q model.CaseQuery, page model.Page) (model.CaseList, error)

func (h *CaseHandler) list(w http.ResponseWriter, r *http.Request, fetch listFunc) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthenticated(""))
		return
	}

	query, err := parseCaseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page := model.NewPage(query.Page, query.PageSize)
	list, err := fetch(r.Context(), principal, query, page)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, list.Cases, model.NewMeta(page, list.Total))
}

func parseCaseQuery(r *http.Request) (model.CaseQuery, error) {
	values := r.URL.Query()
	q := model.CaseQuery{AssignedTo: strings.TrimSpace(values.Get("assigned_to"))}

	var err error
	if q.Page, err = optionalInt(values.Get("page")); err != nil || q.Page > model.MaxPageNumber {
		return model.CaseQuery{}, apierror.BadRequest("page must be a positive integer", "page")
	}
	if q.PageSize, err = optionalInt(values.Get("page_size")); err != nil {
		return model.CaseQuery{}, apierror.BadRequest("page_size must be a positive integer", "page_size")
	}

	return q, nil
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apierror.BadRequest("invalid integer", raw)
	}
	return v, nil
}
