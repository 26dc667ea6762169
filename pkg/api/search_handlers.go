package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/search"
)

// SearchHandlers serves full-text search and typeahead endpoints. Anonymous
// callers only ever see published entities.
type SearchHandlers struct {
	search *search.Service
	logger *observability.Logger
}

// NewSearchHandlers creates the search handlers.
func NewSearchHandlers(svc *search.Service, logger *observability.Logger) *SearchHandlers {
	return &SearchHandlers{search: svc, logger: logger}
}

// RegisterRoutes registers search routes under every API path version.
func (h *SearchHandlers) RegisterRoutes(router *mux.Router) {
	registerVersioned(router, "POST", authz.SearchSkills, h.searchSkills)
	registerVersioned(router, "POST", authz.SearchCollections, h.searchCollections)
	registerVersioned(router, "GET", authz.SearchJobCodes, h.jobCodes)
	registerVersioned(router, "GET", authz.SearchKeywords, h.keywords)
}

// parseSearchRequest fills the request from the body and paging from the
// query string, and scopes anonymous callers to published content.
func (h *SearchHandlers) parseSearchRequest(w http.ResponseWriter, r *http.Request) (search.Request, bool) {
	var req search.Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return req, false
	}

	page, err := httputil.ParsePageParams(r, "name", "skill")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return req, false
	}
	req.Limit = page.Limit
	req.Offset = page.Offset
	req.PublishedOnly = identityFrom(r) == nil
	return req, true
}

func (h *SearchHandlers) searchSkills(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseSearchRequest(w, r)
	if !ok {
		return
	}

	skills, total, err := h.search.SearchSkills(r.Context(), req)
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("skill search failed")
		httputil.WriteInternalError(w, errors.New("search failed"))
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	httputil.WriteSuccess(w, skills)
}

func (h *SearchHandlers) searchCollections(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseSearchRequest(w, r)
	if !ok {
		return
	}

	collections, total, err := h.search.SearchCollections(r.Context(), req)
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("collection search failed")
		httputil.WriteInternalError(w, errors.New("search failed"))
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	httputil.WriteSuccess(w, collections)
}

func (h *SearchHandlers) jobCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.search.JobCodes(r.Context(), r.URL.Query().Get("query"), httputil.ParseQueryInt(r, "size", 0))
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("job code lookup failed")
		httputil.WriteInternalError(w, errors.New("search failed"))
		return
	}
	httputil.WriteSuccess(w, codes)
}

func (h *SearchHandlers) keywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.search.Keywords(r.Context(), r.URL.Query().Get("query"), httputil.ParseQueryInt(r, "size", 0))
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("keyword lookup failed")
		httputil.WriteInternalError(w, errors.New("search failed"))
		return
	}
	httputil.WriteSuccess(w, keywords)
}
