package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openskills/skillhub/pkg/authz"
	"github.com/openskills/skillhub/pkg/httputil"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/tasks"
)

// TaskHandlers serves the polled results endpoints. Each route family only
// resolves tasks of its own kind, so a text task UUID 404s on the media
// route.
type TaskHandlers struct {
	tasks  *tasks.Manager
	logger *observability.Logger
}

// NewTaskHandlers creates the task result handlers.
func NewTaskHandlers(manager *tasks.Manager, logger *observability.Logger) *TaskHandlers {
	return &TaskHandlers{tasks: manager, logger: logger}
}

// RegisterRoutes registers the results routes under every API path version.
func (h *TaskHandlers) RegisterRoutes(router *mux.Router) {
	registerVersioned(router, "GET", authz.TaskTextDetail, h.result(tasks.KindText))
	registerVersioned(router, "GET", authz.TaskMediaDetail, h.result(tasks.KindMedia))
	registerVersioned(router, "GET", authz.TaskSkillsDetail, h.result(tasks.KindSkills))
	registerVersioned(router, "GET", authz.TaskBatchDetail, h.result(tasks.KindBatch))
}

func (h *TaskHandlers) result(kind tasks.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["uuid"]

		task, err := h.tasks.Get(r.Context(), id)
		if errors.Is(err, tasks.ErrNotFound) {
			httputil.WriteNotFoundError(w, "task not found")
			return
		}
		if err != nil {
			httputil.LoggerFromRequest(r, h.logger).WithError(err).Error("failed to get task")
			httputil.WriteInternalError(w, errors.New("failed to get task"))
			return
		}
		if task.Kind != kind {
			httputil.WriteNotFoundError(w, "task not found")
			return
		}

		switch task.Status {
		case tasks.StatusProcessing:
			httputil.WriteAccepted(w, task)
		case tasks.StatusFailed:
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, task.Error)
		default:
			contentType := task.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			w.Write(task.Result)
		}
	}
}
