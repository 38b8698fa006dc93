package task

import (
	"context"
	"errors"
	"log"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	"github.com/go-monolith/mono"
)

// Handlers never return Go errors for domain failures; they are reported in
// the reply so the caller keeps the distinction between them.

func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskReply, error) {
	t, err := m.service.Create(ctx, req.OwnerID, req.Task)
	if err != nil {
		return TaskReply{Error: m.replyError(ServiceCreate, err)}, nil
	}
	log.Printf("[task] Created task %d for user %s", t.ID, t.UserID)
	return TaskReply{Task: t}, nil
}

func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskReply, error) {
	t, err := m.service.Get(ctx, req.TaskID, req.Scope)
	if err != nil {
		return TaskReply{Error: m.replyError(ServiceGet, err)}, nil
	}
	return TaskReply{Task: t}, nil
}

func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskReply, error) {
	current, err := m.service.Get(ctx, req.TaskID, req.Scope)
	if err != nil {
		return TaskReply{Error: m.replyError(ServiceUpdate, err)}, nil
	}

	t, err := m.service.Update(ctx, current, req.Patch)
	if err != nil {
		return TaskReply{Error: m.replyError(ServiceUpdate, err)}, nil
	}
	if t.CompletedAt != nil && current.CompletedAt == nil {
		log.Printf("[task] Task %d completed", t.ID)
	}
	return TaskReply{Task: t}, nil
}

func (m *TaskModule) deleteTask(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskReply, error) {
	t, err := m.service.Get(ctx, req.TaskID, req.Scope)
	if err != nil {
		return DeleteTaskReply{Error: m.replyError(ServiceDelete, err)}, nil
	}
	if err := m.service.Delete(ctx, t); err != nil {
		return DeleteTaskReply{Error: m.replyError(ServiceDelete, err)}, nil
	}
	log.Printf("[task] Deleted task %d", t.ID)
	return DeleteTaskReply{Deleted: true}, nil
}

func (m *TaskModule) listTasks(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksReply, error) {
	page, err := m.service.List(ctx, req.Query)
	if err != nil {
		return ListTasksReply{Error: m.replyError(ServiceList, err)}, nil
	}
	return ListTasksReply{Page: page}, nil
}

func (m *TaskModule) taskStats(ctx context.Context, req TaskStatsRequest, _ *mono.Msg) (TaskStatsReply, error) {
	counts, err := m.service.Stats(ctx, req.OwnerID)
	if err != nil {
		return TaskStatsReply{Error: m.replyError(ServiceStats, err)}, nil
	}
	return TaskStatsReply{Counts: counts}, nil
}

func (m *TaskModule) ping(ctx context.Context, _ PingRequest, _ *mono.Msg) (PingReply, error) {
	if err := m.repo.Ping(ctx); err != nil {
		return PingReply{Healthy: false, Store: m.storeKind, Message: err.Error()}, nil
	}
	return PingReply{Healthy: true, Store: m.storeKind}, nil
}

// replyError logs unexpected failures and converts err for the reply.
func (m *TaskModule) replyError(service string, err error) *ServiceError {
	if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrNotFound) {
		log.Printf("[task] %s failed: %v", service, err)
	}
	return newServiceError(err)
}
