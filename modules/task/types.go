package task

import (
	"context"
	"errors"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
)

// Service names registered by the task module.
const (
	ServiceCreate = "task.create"
	ServiceGet    = "task.get"
	ServiceUpdate = "task.update"
	ServiceDelete = "task.delete"
	ServiceList   = "task.list"
	ServiceStats  = "task.stats"
	ServicePing   = "task.ping"
)

// Error codes carried in ServiceError.
const (
	CodeValidation      = "validation"
	CodeNotFound        = "not_found"
	CodeUnauthenticated = "unauthenticated"
	CodeInternal        = "internal"
)

// ServiceError reports a failed operation inside a reply payload, so callers
// can tell a missing task from a broken store.
type ServiceError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Err converts the reply error back into the matching domain error.
func (e *ServiceError) Err() error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case CodeValidation:
		return domain.NewValidationError(e.Field, e.Message)
	case CodeNotFound:
		return domain.ErrNotFound
	case CodeUnauthenticated:
		return domain.ErrUnauthenticated
	default:
		return errors.New(e.Message)
	}
}

// newServiceError classifies err. Internal errors never expose their message.
func newServiceError(err error) *ServiceError {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		return &ServiceError{Code: CodeValidation, Field: vErr.Field, Message: vErr.Message}
	case errors.Is(err, domain.ErrNotFound):
		return &ServiceError{Code: CodeNotFound, Message: domain.ErrNotFound.Error()}
	case errors.Is(err, domain.ErrUnauthenticated):
		return &ServiceError{Code: CodeUnauthenticated, Message: domain.ErrUnauthenticated.Error()}
	default:
		return &ServiceError{Code: CodeInternal, Message: "internal error"}
	}
}

// CreateTaskRequest is the payload of task.create.
type CreateTaskRequest struct {
	OwnerID string         `json:"owner_id"`
	Task    domain.NewTask `json:"task"`
}

// GetTaskRequest is the payload of task.get.
type GetTaskRequest struct {
	TaskID uint         `json:"task_id"`
	Scope  domain.Scope `json:"scope"`
}

// UpdateTaskRequest is the payload of task.update.
type UpdateTaskRequest struct {
	TaskID uint         `json:"task_id"`
	Scope  domain.Scope `json:"scope"`
	Patch  domain.Patch `json:"patch"`
}

// DeleteTaskRequest is the payload of task.delete.
type DeleteTaskRequest struct {
	TaskID uint         `json:"task_id"`
	Scope  domain.Scope `json:"scope"`
}

// ListTasksRequest is the payload of task.list.
type ListTasksRequest struct {
	Query domain.ListQuery `json:"query"`
}

// TaskStatsRequest is the payload of task.stats.
type TaskStatsRequest struct {
	OwnerID string `json:"owner_id"`
}

// PingRequest is the payload of task.ping.
type PingRequest struct{}

// TaskReply is returned by task.create, task.get and task.update.
type TaskReply struct {
	Task  *domain.Task  `json:"task,omitempty"`
	Error *ServiceError `json:"error,omitempty"`
}

// DeleteTaskReply is returned by task.delete.
type DeleteTaskReply struct {
	Deleted bool          `json:"deleted"`
	Error   *ServiceError `json:"error,omitempty"`
}

// ListTasksReply is returned by task.list.
type ListTasksReply struct {
	Page  *domain.Page  `json:"page,omitempty"`
	Error *ServiceError `json:"error,omitempty"`
}

// TaskStatsReply is returned by task.stats.
type TaskStatsReply struct {
	Counts domain.StatusCounts `json:"counts,omitempty"`
	Error  *ServiceError       `json:"error,omitempty"`
}

// PingReply is returned by task.ping.
type PingReply struct {
	Healthy bool   `json:"healthy"`
	Store   string `json:"store"`
	Message string `json:"message,omitempty"`
}

// TaskPort is the interface other modules use to reach the task engine.
type TaskPort interface {
	CreateTask(ctx context.Context, ownerID string, in domain.NewTask) (*domain.Task, error)
	GetTask(ctx context.Context, id uint, scope domain.Scope) (*domain.Task, error)
	UpdateTask(ctx context.Context, id uint, scope domain.Scope, patch domain.Patch) (*domain.Task, error)
	DeleteTask(ctx context.Context, id uint, scope domain.Scope) error
	ListTasks(ctx context.Context, q domain.ListQuery) (*domain.Page, error)
	TaskStats(ctx context.Context, ownerID string) (domain.StatusCounts, error)
	Ping(ctx context.Context) (*PingReply, error)
}
