package api

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/auth"
	"github.com/ERSMS-25L/ERSMS-Task-Service/modules/task"
	"github.com/gofiber/fiber/v2"
)

// readyTimeout bounds the store ping of the readiness check.
const readyTimeout = 3 * time.Second

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	taskPort task.TaskPort
	authPort auth.AuthPort
	config   Config
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(taskPort task.TaskPort, authPort auth.AuthPort, config Config) *Handlers {
	return &Handlers{
		taskPort: taskPort,
		authPort: authPort,
		config:   config,
		now:      time.Now,
	}
}

// Health reports that the process is up.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		Service:   h.config.ServiceName,
		Version:   h.config.Version,
	})
}

// Ready reports whether the task store can serve requests.
func (h *Handlers) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{
		Status:    "ready",
		Timestamp: h.now().UTC(),
		Service:   h.config.ServiceName,
	}

	ping, err := h.taskPort.Ping(ctx)
	switch {
	case err != nil:
		resp.Status = "not_ready"
		resp.Message = "task store unreachable"
	case !ping.Healthy:
		resp.Status = "not_ready"
		resp.Store = ping.Store
		resp.Message = ping.Message
	default:
		resp.Store = ping.Store
	}

	if resp.Status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// IssueToken signs a development access token.
func (h *Handlers) IssueToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "must not be empty",
			Field:   "user_id",
		})
	}

	tokens, err := h.authPort.IssueToken(c.UserContext(), req.UserID, req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrIssueRejected) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
				Error:   "validation_error",
				Message: err.Error(),
				Field:   "user_id",
			})
		}
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TokenResponse{
		AccessToken: tokens.AccessToken,
		ExpiresIn:   tokens.ExpiresIn,
		TokenType:   tokens.TokenType,
	})
}

// CreateTask handles POST /tasks.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return writeError(c, domain.ErrUnauthenticated)
	}

	var req CreateTaskRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	in := domain.NewTask{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Priority != "" {
		priority, err := domain.ParsePriority(req.Priority)
		if err != nil {
			return writeError(c, err)
		}
		in.Priority = priority
	}

	t, err := h.taskPort.CreateTask(c.UserContext(), claims.UserID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toTaskResponse(t))
}

// ListTasks handles GET /tasks.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return writeError(c, domain.ErrUnauthenticated)
	}

	q, err := h.parseListQuery(c, claims.UserID)
	if err != nil {
		return writeError(c, err)
	}

	page, err := h.taskPort.ListTasks(c.UserContext(), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskListResponse(page))
}

// GetTask handles GET /tasks/:id.
func (h *Handlers) GetTask(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return writeError(c, domain.ErrUnauthenticated)
	}
	id, err := taskID(c)
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	t, err := h.taskPort.GetTask(c.UserContext(), id, domain.OwnedBy(claims.UserID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(t))
}

// UpdateTask handles PUT /tasks/:id. Only the fields present in the body
// change; an explicit null clears description or due_date.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return writeError(c, domain.ErrUnauthenticated)
	}
	id, err := taskID(c)
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	var patch domain.Patch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return badRequest(c, "Invalid request body")
	}
	normalizePatch(&patch)

	t, err := h.taskPort.UpdateTask(c.UserContext(), id, domain.OwnedBy(claims.UserID), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(t))
}

// DeleteTask handles DELETE /tasks/:id.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return writeError(c, domain.ErrUnauthenticated)
	}
	id, err := taskID(c)
	if err != nil {
		return badRequest(c, "Invalid task id")
	}

	if err := h.taskPort.DeleteTask(c.UserContext(), id, domain.OwnedBy(claims.UserID)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UserStats handles GET /users/me/stats.
func (h *Handlers) UserStats(c *fiber.Ctx) error {
	claims, ok := currentUser(c)
	if !ok {
		return writeError(c, domain.ErrUnauthenticated)
	}

	counts, err := h.taskPort.TaskStats(c.UserContext(), claims.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(UserStatsResponse{
		UserID:    claims.UserID,
		UserEmail: claims.Email,
		TaskStats: toStatsMap(counts),
	})
}

// parseListQuery reads filters and paging from the query string.
func (h *Handlers) parseListQuery(c *fiber.Ctx, ownerID string) (domain.ListQuery, error) {
	q := domain.ListQuery{
		Filter: domain.Filter{
			OwnerID: ownerID,
			Search:  c.Query("search"),
		},
		Page: 1,
		Size: h.config.DefaultPageSize,
	}

	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Status = status
	}
	if raw := c.Query("priority"); raw != "" {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			return q, err
		}
		q.Priority = priority
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return q, domain.NewValidationError("page", "must be an integer")
		}
		q.Page = page
	}
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return q, domain.NewValidationError("size", "must be an integer")
		}
		q.Size = size
	}
	return q, nil
}

// normalizePatch accepts enum values in any case, as the query parameters do.
func normalizePatch(p *domain.Patch) {
	if p.Status.Set && !p.Status.Null {
		if s, err := domain.ParseStatus(string(p.Status.Value)); err == nil {
			p.Status.Value = s
		}
	}
	if p.Priority.Set && !p.Priority.Null {
		if pr, err := domain.ParsePriority(string(p.Priority.Value)); err == nil {
			p.Priority.Value = pr
		}
	}
}

func taskID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid task id")
	}
	return uint(id), nil
}
