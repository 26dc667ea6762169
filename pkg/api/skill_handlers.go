package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/openskills/skillhub/pkg/audit"
	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/export"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/storage"
)

// SkillHandlers serves the skill CRUD and lifecycle endpoints.
type SkillHandlers struct {
	store   storage.Store
	audit   *audit.Logger
	baseURL string
	logger  *observability.Logger
}

// NewSkillHandlers creates the skill handlers. baseURL prefixes canonical
// skill URLs in CSV exports.
func NewSkillHandlers(store storage.Store, auditLogger *audit.Logger, baseURL string, logger *observability.Logger) *SkillHandlers {
	return &SkillHandlers{
		store:   store,
		audit:   auditLogger,
		baseURL: baseURL,
		logger:  logger,
	}
}

// RegisterRoutes registers skill routes under every API path version.
func (h *SkillHandlers) RegisterRoutes(router *mux.Router) {
	registerVersioned(router, "GET", authz.SkillsList, h.listSkills)
	registerVersioned(router, "POST", authz.SkillsCreate, h.createSkill)
	registerVersioned(router, "POST", authz.SkillsFilter, h.filterSkills)
	registerVersioned(router, "POST", authz.SkillPublish, h.publishSkills)
	registerVersioned(router, "GET", authz.SkillDetail, h.getSkill)
	registerVersioned(router, "POST", authz.SkillUpdate, h.updateSkill)
	registerVersioned(router, "GET", authz.SkillAuditLog, h.getSkillLog)
}

// skillPayload is the client-supplied portion of a skill.
type skillPayload struct {
	Name      string   `json:"skillName"`
	Statement string   `json:"skillStatement"`
	Author    string   `json:"author"`
	Category  string   `json:"category"`
	Keywords  []string `json:"keywords"`
	JobCodes  []string `json:"occupations"`
	Standards []string `json:"standards"`
}

func (p skillPayload) validate() error {
	if p.Name == "" {
		return errors.New("skillName is required")
	}
	if p.Statement == "" {
		return errors.New("skillStatement is required")
	}
	return nil
}

func (h *SkillHandlers) listSkills(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePageParams(r, "name", "skill")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	opts := storage.ListOptions{Limit: page.Limit, Offset: page.Offset, Sort: page.Sort}
	if statuses, ok := parseStatuses(r.URL.Query()["status"]); ok {
		opts.Statuses = statuses
	} else {
		httputil.WriteBadRequest(w, "invalid status filter")
		return
	}

	skills, total, err := h.store.ListSkills(r.Context(), opts)
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to list skills")
		httputil.WriteInternalError(w, errors.New("failed to list skills"))
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		h.writeSkillsCSV(w, r, skills)
		return
	}
	httputil.WriteSuccess(w, skills)
}

// writeSkillsCSV renders a skill listing inline as CSV for clients that
// negotiate it via the Accept header.
func (h *SkillHandlers) writeSkillsCSV(w http.ResponseWriter, r *http.Request, skills []*storage.Skill) {
	data, err := export.SkillsCSV(h.baseURL, skills)
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to render skills CSV")
		httputil.WriteInternalError(w, errors.New("failed to render skills CSV"))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *SkillHandlers) createSkill(w http.ResponseWriter, r *http.Request) {
	var payload skillPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if err := payload.validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	skill := &storage.Skill{
		Name:      payload.Name,
		Statement: payload.Statement,
		Author:    payload.Author,
		Category:  payload.Category,
		Keywords:  payload.Keywords,
		JobCodes:  payload.JobCodes,
		Standards: payload.Standards,
	}
	if err := h.store.CreateSkill(r.Context(), skill); err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to create skill")
		httputil.WriteInternalError(w, errors.New("failed to create skill"))
		return
	}

	h.record(r, skill.UUID, audit.OperationCreate, nil)
	httputil.WriteCreated(w, skill)
}

// filterSkills is the POST variant of listing, for filter sets too large for
// a query string.
type skillFilterRequest struct {
	Statuses []string `json:"status"`
	Size     int      `json:"size"`
	From     int      `json:"from"`
	Sort     string   `json:"sort"`
}

func (h *SkillHandlers) filterSkills(w http.ResponseWriter, r *http.Request) {
	var req skillFilterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	statuses, ok := parseStatuses(req.Statuses)
	if !ok {
		httputil.WriteBadRequest(w, "invalid status filter")
		return
	}

	skills, total, err := h.store.ListSkills(r.Context(), storage.ListOptions{
		Limit:    req.Size,
		Offset:   req.From,
		Sort:     req.Sort,
		Statuses: statuses,
	})
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to filter skills")
		httputil.WriteInternalError(w, errors.New("failed to filter skills"))
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	httputil.WriteSuccess(w, skills)
}

func (h *SkillHandlers) getSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	skill, err := h.store.GetSkill(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "skill not found")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to get skill")
		httputil.WriteInternalError(w, errors.New("failed to get skill"))
		return
	}

	httputil.WriteSuccess(w, skill)
}

func (h *SkillHandlers) updateSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	var payload skillPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if err := payload.validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	skill := &storage.Skill{
		UUID:      id,
		Name:      payload.Name,
		Statement: payload.Statement,
		Author:    payload.Author,
		Category:  payload.Category,
		Keywords:  payload.Keywords,
		JobCodes:  payload.JobCodes,
		Standards: payload.Standards,
	}
	err := h.store.UpdateSkill(r.Context(), skill)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "skill not found")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to update skill")
		httputil.WriteInternalError(w, errors.New("failed to update skill"))
		return
	}

	h.record(r, id, audit.OperationUpdate, map[string]string{"name": payload.Name})
	httputil.WriteSuccess(w, skill)
}

// publishRequest is the batch lifecycle transition body.
type publishRequest struct {
	UUIDs  []string `json:"uuids"`
	Status string   `json:"status"`
}

type publishResponse struct {
	Modified int      `json:"modifiedCount"`
	Total    int      `json:"totalCount"`
	Errors   []string `json:"errors,omitempty"`
}

func (h *SkillHandlers) publishSkills(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.UUIDs) == 0 {
		httputil.WriteBadRequest(w, "uuids is required")
		return
	}
	status := storage.PublishStatus(req.Status)
	if status == "" {
		status = storage.StatusPublished
	}
	if !status.Valid() {
		httputil.WriteBadRequest(w, "invalid status")
		return
	}

	resp := publishResponse{Total: len(req.UUIDs)}
	for _, id := range req.UUIDs {
		if _, err := h.store.SetSkillStatus(r.Context(), id, status); err != nil {
			resp.Errors = append(resp.Errors, id)
			continue
		}
		resp.Modified++
		h.record(r, id, audit.OperationPublishChange, map[string]string{"status": string(status)})
	}

	httputil.WriteSuccess(w, resp)
}

func (h *SkillHandlers) getSkillLog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	if _, err := h.store.GetSkill(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "skill not found")
			return
		}
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to get skill")
		httputil.WriteInternalError(w, errors.New("failed to load skill history"))
		return
	}
	if h.audit == nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "audit history unavailable")
		return
	}

	events, err := h.audit.History(r.Context(), audit.EntitySkill, id, httputil.ParseQueryInt(r, "size", 100))
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to load skill history")
		httputil.WriteInternalError(w, errors.New("failed to load skill history"))
		return
	}

	httputil.WriteSuccess(w, events)
}

// record writes an audit event, logging rather than failing the request when
// the audit store is down.
func (h *SkillHandlers) record(r *http.Request, id string, op audit.Operation, changes map[string]string) {
	if h.audit == nil {
		return
	}
	event := &audit.Event{
		EntityType: audit.EntitySkill,
		EntityUUID: id,
		Operation:  op,
		User:       auditUser(r),
		Changes:    changes,
	}
	if err := h.audit.Record(r.Context(), event); err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Warn("failed to record audit event")
	}
}

// parseStatuses validates a status filter list.
func parseStatuses(raw []string) ([]storage.PublishStatus, bool) {
	statuses := make([]storage.PublishStatus, 0, len(raw))
	for _, s := range raw {
		status := storage.PublishStatus(s)
		if !status.Valid() || status == storage.StatusDeleted {
			return nil, false
		}
		statuses = append(statuses, status)
	}
	return statuses, true
}
