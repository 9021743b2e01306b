package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dkoller/taskhub/internal/config"
	"github.com/dkoller/taskhub/internal/domain/task"
	"github.com/dkoller/taskhub/internal/http/middlewares"
	"github.com/dkoller/taskhub/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type TasksRepository interface {
	Create(ctx context.Context, t task.Task) error
	GetByID(ctx context.Context, id, ownerID string) (task.Task, error)
	ListByOwner(ctx context.Context, ownerID string, filter task.ListFilter) ([]task.Task, error)
	Update(ctx context.Context, t task.Task) (task.Task, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type TasksHandler struct {
	tasks TasksRepository
	log   *slog.Logger
}

func NewTasksHandler(tasks TasksRepository, log *slog.Logger) *TasksHandler {
	return &TasksHandler{tasks: tasks, log: log}
}

func (h *TasksHandler) Create(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	var req task.CreateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// required is checked against the trimmed value; "   " is not a description
	if strings.TrimSpace(req.Description) == "" {
		RespondBadRequest(ctx, "invalid_request", "Description must not be blank")
		return
	}

	t := task.NewFromCreateRequest(req, u.ID)

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	err := h.tasks.Create(cctx, t)

	if err != nil {
		h.log.Error("tasks: create", "error", err, "owner_id", u.ID)
		RespondInternal(ctx, "Could not create task")
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

// List reads the filter from the query string:
//
//	GET /tasks?completed=true&limit=10&skip=20&sortBy=createdAt:desc
//
// Unknown sort fields and unparsable values fall back to the defaults
// rather than erroring.
func (h *TasksHandler) List(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	filter := parseListFilter(ctx)

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	out, err := h.tasks.ListByOwner(cctx, u.ID, filter)

	if err != nil {
		h.log.Error("tasks: list", "error", err, "owner_id", u.ID)
		RespondInternal(ctx, "Could not list tasks")
		return
	}

	ctx.JSON(http.StatusOK, out)
}

func (h *TasksHandler) GetByID(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Task not found")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	t, err := h.tasks.GetByID(cctx, id, u.ID)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}

		h.log.Error("tasks: get", "error", err, "task_id", id)
		RespondInternal(ctx, "Could not fetch task")
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *TasksHandler) Update(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Task not found")
		return
	}

	body, err := io.ReadAll(ctx.Request.Body)

	if err != nil {
		RespondBadRequest(ctx, "invalid_request", "Could not read request body")
		return
	}

	keys, err := bodyKeys(body)

	if err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body")
		return
	}

	if task.ValidateUpdateKeys(keys) != nil {
		RespondBadRequest(ctx, "invalid_updates", "Invalid updates")
		return
	}

	var req task.UpdateTaskRequest

	if err := json.Unmarshal(body, &req); err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body")
		return
	}

	if err := binding.Validator.ValidateStruct(&req); err != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_request", "Invalid request body", parseBindError(err, &req))
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	// read-modify-write against the owner-scoped row
	t, err := h.tasks.GetByID(cctx, id, u.ID)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}

		h.log.Error("tasks: update fetch", "error", err, "task_id", id)
		RespondInternal(ctx, "Could not update task")
		return
	}

	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if desc == "" {
			RespondBadRequest(ctx, "invalid_request", "Description must not be blank")
			return
		}
		t.Description = desc
	}

	if req.Completed != nil {
		t.Completed = *req.Completed
	}

	updated, err := h.tasks.Update(cctx, t)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}

		h.log.Error("tasks: update", "error", err, "task_id", id)
		RespondInternal(ctx, "Could not update task")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *TasksHandler) Delete(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Not authenticated")
		return
	}

	id := ctx.Param("id")

	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Task not found")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	// return the task in the delete response, matching the other
	// mutating endpoints
	t, err := h.tasks.GetByID(cctx, id, u.ID)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}

		h.log.Error("tasks: delete fetch", "error", err, "task_id", id)
		RespondInternal(ctx, "Could not delete task")
		return
	}

	err = h.tasks.Delete(cctx, id, u.ID)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}

		h.log.Error("tasks: delete", "error", err, "task_id", id)
		RespondInternal(ctx, "Could not delete task")
		return
	}

	ctx.JSON(http.StatusOK, t)
}

func parseListFilter(ctx *gin.Context) task.ListFilter {
	var filter task.ListFilter

	if raw, ok := ctx.GetQuery("completed"); ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.Completed = &v
		}
	}

	if raw, ok := ctx.GetQuery("limit"); ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.Limit = v
		}
	}

	if raw, ok := ctx.GetQuery("skip"); ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.Skip = v
		}
	}

	if raw, ok := ctx.GetQuery("sortBy"); ok {
		field, dir, _ := strings.Cut(raw, ":")
		if field == "createdAt" && strings.EqualFold(dir, "desc") {
			filter.SortDesc = true
		}
	}

	return filter
}
