package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openskills/skillhub/pkg/audit"
	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/config"
	"github.com/openskills/skillhub/pkg/export"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/storage"
	"github.com/openskills/skillhub/pkg/tasks"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CollectionHandlers serves collection CRUD, membership, and export endpoints.
type CollectionHandlers struct {
	store  storage.Store
	audit  *audit.Logger
	tasks  *tasks.Manager
	cfg    *config.Config
	logger *observability.Logger
}

// NewCollectionHandlers creates the collection handlers.
func NewCollectionHandlers(store storage.Store, auditLogger *audit.Logger, taskManager *tasks.Manager, cfg *config.Config, logger *observability.Logger) *CollectionHandlers {
	return &CollectionHandlers{
		store:  store,
		audit:  auditLogger,
		tasks:  taskManager,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterRoutes registers collection routes under every API path version.
func (h *CollectionHandlers) RegisterRoutes(router *mux.Router) {
	registerVersioned(router, "GET", authz.CollectionsList, h.listCollections)
	registerVersioned(router, "POST", authz.CollectionCreate, h.createCollection)
	registerVersioned(router, "POST", authz.CollectionPublish, h.publishCollections)
	registerVersioned(router, "GET", authz.CollectionDetail, h.getCollection)
	registerVersioned(router, "POST", authz.CollectionUpdate, h.updateCollection)
	registerVersioned(router, "POST", authz.CollectionSkills, h.listCollectionSkills)
	registerVersioned(router, "POST", authz.CollectionSkillsUpdate, h.updateCollectionSkills)
	registerVersioned(router, "DELETE", authz.CollectionRemove, h.removeCollection)
	registerVersioned(router, "GET", authz.CollectionCSV, h.exportCSV)
	registerVersioned(router, "GET", authz.CollectionXLSX, h.exportXLSX)
	registerVersioned(router, "GET", authz.CollectionAuditLog, h.getCollectionLog)
	registerVersioned(router, "GET", authz.Workspace, h.getWorkspace)
}

type collectionPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

func (p collectionPayload) validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func (h *CollectionHandlers) listCollections(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePageParams(r, "name")
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

	collections, total, err := h.store.ListCollections(r.Context(), opts)
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to list collections")
		httputil.WriteInternalError(w, errors.New("failed to list collections"))
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	httputil.WriteSuccess(w, collections)
}

func (h *CollectionHandlers) createCollection(w http.ResponseWriter, r *http.Request) {
	var payload collectionPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if err := payload.validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	collection := &storage.Collection{
		Name:        payload.Name,
		Description: payload.Description,
		Author:      payload.Author,
	}
	if err := h.store.CreateCollection(r.Context(), collection); err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to create collection")
		httputil.WriteInternalError(w, errors.New("failed to create collection"))
		return
	}

	h.record(r, collection.UUID, audit.OperationCreate, nil)
	httputil.WriteCreated(w, collection)
}

func (h *CollectionHandlers) getCollection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	collection, err := h.store.GetCollection(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "collection not found")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to get collection")
		httputil.WriteInternalError(w, errors.New("failed to get collection"))
		return
	}

	httputil.WriteSuccess(w, collection)
}

func (h *CollectionHandlers) updateCollection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	var payload collectionPayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if err := payload.validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	collection := &storage.Collection{
		UUID:        id,
		Name:        payload.Name,
		Description: payload.Description,
		Author:      payload.Author,
	}
	err := h.store.UpdateCollection(r.Context(), collection)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "collection not found")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to update collection")
		httputil.WriteInternalError(w, errors.New("failed to update collection"))
		return
	}

	h.record(r, id, audit.OperationUpdate, map[string]string{"name": payload.Name})
	httputil.WriteSuccess(w, collection)
}

func (h *CollectionHandlers) listCollectionSkills(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	page, err := httputil.ParsePageParams(r, "name", "skill")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	skills, total, err := h.store.ListCollectionSkills(r.Context(), id, storage.ListOptions{
		Limit:  page.Limit,
		Offset: page.Offset,
		Sort:   page.Sort,
	})
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "collection not found")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to list collection skills")
		httputil.WriteInternalError(w, errors.New("failed to list collection skills"))
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	httputil.WriteSuccess(w, skills)
}

type membershipRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

func (h *CollectionHandlers) updateCollectionSkills(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	var req membershipRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		httputil.WriteBadRequest(w, "add or remove is required")
		return
	}

	err := h.store.UpdateCollectionSkills(r.Context(), id, req.Add, req.Remove)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "collection not found")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to update collection skills")
		httputil.WriteInternalError(w, errors.New("failed to update collection skills"))
		return
	}

	h.record(r, id, audit.OperationSkillsChange, map[string]string{
		"added":   strconv.Itoa(len(req.Add)),
		"removed": strconv.Itoa(len(req.Remove)),
	})
	httputil.WriteSuccess(w, map[string]string{"uuid": id})
}

func (h *CollectionHandlers) publishCollections(w http.ResponseWriter, r *http.Request) {
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
		if _, err := h.store.SetCollectionStatus(r.Context(), id, status); err != nil {
			resp.Errors = append(resp.Errors, id)
			continue
		}
		resp.Modified++
		h.record(r, id, audit.OperationPublishChange, map[string]string{"status": string(status)})
	}

	httputil.WriteSuccess(w, resp)
}

// removeCollection soft-deletes the collection; its skills survive.
func (h *CollectionHandlers) removeCollection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	_, err := h.store.SetCollectionStatus(r.Context(), id, storage.StatusDeleted)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteNotFoundError(w, "collection not found")
		return
	}
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to remove collection")
		httputil.WriteInternalError(w, errors.New("failed to remove collection"))
		return
	}

	h.record(r, id, audit.OperationPublishChange, map[string]string{"status": string(storage.StatusDeleted)})
	httputil.WriteNoContent(w)
}

func (h *CollectionHandlers) exportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "text/csv", func(ctx context.Context, skills []*storage.Skill) ([]byte, error) {
		return export.SkillsCSV(h.cfg.Auth.BaseURL, skills)
	})
}

func (h *CollectionHandlers) exportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, xlsxContentType, func(ctx context.Context, skills []*storage.Skill) ([]byte, error) {
		return export.SkillsXLSX(h.cfg.Auth.BaseURL, skills)
	})
}

// export submits the render as a background task and returns 202 with the
// task UUID the caller polls via the results endpoints.
func (h *CollectionHandlers) export(w http.ResponseWriter, r *http.Request, contentType string, render func(context.Context, []*storage.Skill) ([]byte, error)) {
	if h.tasks == nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "exports unavailable")
		return
	}
	id := mux.Vars(r)["uuid"]

	if _, err := h.store.GetCollection(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "collection not found")
			return
		}
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to get collection")
		httputil.WriteInternalError(w, errors.New("failed to get collection"))
		return
	}

	task, err := h.tasks.Submit(r.Context(), tasks.KindText, contentType, func(ctx context.Context) ([]byte, error) {
		skills, _, err := h.store.ListCollectionSkills(ctx, id, storage.ListOptions{Limit: exportPageLimit})
		if err != nil {
			return nil, err
		}
		return render(ctx, skills)
	})
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to submit export task")
		httputil.WriteInternalError(w, errors.New("failed to submit export task"))
		return
	}

	httputil.WriteAccepted(w, task)
}

// exportPageLimit bounds the export size to the storage layer's page cap.
const exportPageLimit = 1000

// workspaceName is the reserved name of a user's scratch collection.
const workspaceName = "Workspace"

// getWorkspace returns the caller's personal draft collection, creating it on
// first access.
func (h *CollectionHandlers) getWorkspace(w http.ResponseWriter, r *http.Request) {
	user := auditUser(r)

	workspace, err := h.store.FindCollectionByName(r.Context(), user, workspaceName)
	if err == nil {
		httputil.WriteSuccess(w, workspace)
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to load workspace")
		httputil.WriteInternalError(w, errors.New("failed to load workspace"))
		return
	}

	workspace = &storage.Collection{Name: workspaceName, Author: user}
	if err := h.store.CreateCollection(r.Context(), workspace); err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to create workspace")
		httputil.WriteInternalError(w, errors.New("failed to create workspace"))
		return
	}

	h.record(r, workspace.UUID, audit.OperationCreate, nil)
	httputil.WriteCreated(w, workspace)
}

func (h *CollectionHandlers) getCollectionLog(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["uuid"]

	if _, err := h.store.GetCollection(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteNotFoundError(w, "collection not found")
			return
		}
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to get collection")
		httputil.WriteInternalError(w, errors.New("failed to load collection history"))
		return
	}
	if h.audit == nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "audit history unavailable")
		return
	}

	events, err := h.audit.History(r.Context(), audit.EntityCollection, id, httputil.ParseQueryInt(r, "size", 100))
	if err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to load collection history")
		httputil.WriteInternalError(w, errors.New("failed to load collection history"))
		return
	}

	httputil.WriteSuccess(w, events)
}

func (h *CollectionHandlers) record(r *http.Request, id string, op audit.Operation, changes map[string]string) {
	if h.audit == nil {
		return
	}
	event := &audit.Event{
		EntityType: audit.EntityCollection,
		EntityUUID: id,
		Operation:  op,
		User:       auditUser(r),
		Changes:    changes,
	}
	if err := h.audit.Record(r.Context(), event); err != nil {
		httputil.LoggerFromRequest(r, h.logger).WithError(err).Warn("failed to record audit event")
	}
}
