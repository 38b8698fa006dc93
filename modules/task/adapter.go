package task

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// taskAdapter implements TaskPort over the task module's request-reply services.
type taskAdapter struct {
	container mono.ServiceContainer
}

// NewTaskAdapter creates a TaskPort. container is the task module's
// ServiceContainer received via SetDependencyServiceContainer.
func NewTaskAdapter(container mono.ServiceContainer) TaskPort {
	if container == nil {
		panic("task adapter requires non-nil ServiceContainer")
	}
	return &taskAdapter{container: container}
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s service call failed: %w", service, err)
	}
	return nil
}

// CreateTask creates a task owned by ownerID.
func (a *taskAdapter) CreateTask(ctx context.Context, ownerID string, in domain.NewTask) (*domain.Task, error) {
	req := CreateTaskRequest{OwnerID: ownerID, Task: in}
	var resp TaskReply
	if err := call(ctx, a.container, ServiceCreate, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Task, nil
}

// GetTask retrieves a task visible under scope.
func (a *taskAdapter) GetTask(ctx context.Context, id uint, scope domain.Scope) (*domain.Task, error) {
	req := GetTaskRequest{TaskID: id, Scope: scope}
	var resp TaskReply
	if err := call(ctx, a.container, ServiceGet, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Task, nil
}

// UpdateTask applies patch to a task visible under scope.
func (a *taskAdapter) UpdateTask(ctx context.Context, id uint, scope domain.Scope, patch domain.Patch) (*domain.Task, error) {
	req := UpdateTaskRequest{TaskID: id, Scope: scope, Patch: patch}
	var resp TaskReply
	if err := call(ctx, a.container, ServiceUpdate, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Task, nil
}

// DeleteTask removes a task visible under scope.
func (a *taskAdapter) DeleteTask(ctx context.Context, id uint, scope domain.Scope) error {
	req := DeleteTaskRequest{TaskID: id, Scope: scope}
	var resp DeleteTaskReply
	if err := call(ctx, a.container, ServiceDelete, &req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error.Err()
	}
	if !resp.Deleted {
		return fmt.Errorf("task not deleted: %d", id)
	}
	return nil
}

// ListTasks returns one page of tasks.
func (a *taskAdapter) ListTasks(ctx context.Context, q domain.ListQuery) (*domain.Page, error) {
	req := ListTasksRequest{Query: q}
	var resp ListTasksReply
	if err := call(ctx, a.container, ServiceList, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Page, nil
}

// TaskStats counts the owner's tasks per status.
func (a *taskAdapter) TaskStats(ctx context.Context, ownerID string) (domain.StatusCounts, error) {
	req := TaskStatsRequest{OwnerID: ownerID}
	var resp TaskStatsReply
	if err := call(ctx, a.container, ServiceStats, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Counts, nil
}

// Ping reports whether the task store is reachable.
func (a *taskAdapter) Ping(ctx context.Context) (*PingReply, error) {
	var req PingRequest
	var resp PingReply
	if err := call(ctx, a.container, ServicePing, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
