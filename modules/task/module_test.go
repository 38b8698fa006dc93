package task

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind string
		wantDSN  string
		wantErr  bool
	}{
		{"postgres://u:p@localhost:5432/tasks", StorePostgres, "postgres://u:p@localhost:5432/tasks", false},
		{"postgresql://localhost/tasks", StorePostgres, "postgresql://localhost/tasks", false},
		{"postgresql+asyncpg://u:p@db:5432/tasks", StorePostgres, "postgresql://u:p@db:5432/tasks", false},
		{"sqlite://tasks.db", StoreSQLite, "tasks.db", false},
		{"sqlite://:memory:", StoreSQLite, ":memory:", false},
		{"memory://", StoreMemory, "", false},
		{"sqlite://", "", "", true},
		{"mysql://localhost/tasks", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			kind, dsn, err := parseDatabaseURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantDSN, dsn)
		})
	}
}

func startTestModule(t *testing.T, databaseURL string) *TaskModule {
	t.Helper()
	m := NewModule(Config{DatabaseURL: databaseURL, MaxPageSize: 10})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Stop(context.Background()) })
	return m
}

func TestTaskModule_StartWithSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	m := startTestModule(t, "sqlite://"+path)

	health := m.Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Equal(t, StoreSQLite, health.Details["store"])
}

func TestTaskModule_StartRejectsUnknownStore(t *testing.T) {
	m := NewModule(Config{DatabaseURL: "mongodb://localhost"})
	assert.Error(t, m.Start(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
}

func TestTaskModule_Handlers(t *testing.T) {
	ctx := context.Background()
	m := startTestModule(t, "memory://")

	created, err := m.createTask(ctx, CreateTaskRequest{
		OwnerID: "user-a",
		Task:    domain.NewTask{Title: "  handler task "},
	}, nil)
	require.NoError(t, err)
	require.Nil(t, created.Error)
	require.NotNil(t, created.Task)
	assert.Equal(t, "handler task", created.Task.Title)
	id := created.Task.ID

	invalid, err := m.createTask(ctx, CreateTaskRequest{OwnerID: "user-a", Task: domain.NewTask{Title: " "}}, nil)
	require.NoError(t, err)
	require.NotNil(t, invalid.Error)
	assert.Equal(t, CodeValidation, invalid.Error.Code)
	assert.Equal(t, "title", invalid.Error.Field)

	foreign, err := m.getTask(ctx, GetTaskRequest{TaskID: id, Scope: domain.OwnedBy("user-b")}, nil)
	require.NoError(t, err)
	require.NotNil(t, foreign.Error)
	assert.Equal(t, CodeNotFound, foreign.Error.Code)

	updated, err := m.updateTask(ctx, UpdateTaskRequest{
		TaskID: id,
		Scope:  domain.OwnedBy("user-a"),
		Patch:  domain.Patch{Status: domain.Some(domain.StatusCompleted)},
	}, nil)
	require.NoError(t, err)
	require.Nil(t, updated.Error)
	assert.NotNil(t, updated.Task.CompletedAt)

	foreignUpdate, err := m.updateTask(ctx, UpdateTaskRequest{
		TaskID: id,
		Scope:  domain.OwnedBy("user-b"),
		Patch:  domain.Patch{Title: domain.Some("stolen")},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, foreignUpdate.Error)
	assert.Equal(t, CodeNotFound, foreignUpdate.Error.Code)

	list, err := m.listTasks(ctx, ListTasksRequest{Query: domain.ListQuery{
		Filter: domain.Filter{OwnerID: "user-a"}, Page: 1, Size: 11,
	}}, nil)
	require.NoError(t, err)
	require.NotNil(t, list.Error)
	assert.Equal(t, "size", list.Error.Field)

	list, err = m.listTasks(ctx, ListTasksRequest{Query: domain.ListQuery{
		Filter: domain.Filter{OwnerID: "user-a"}, Page: 1, Size: 10,
	}}, nil)
	require.NoError(t, err)
	require.Nil(t, list.Error)
	assert.Equal(t, int64(1), list.Page.Total)

	stats, err := m.taskStats(ctx, TaskStatsRequest{OwnerID: "user-a"}, nil)
	require.NoError(t, err)
	require.Nil(t, stats.Error)
	assert.Equal(t, int64(1), stats.Counts[domain.StatusCompleted])
	assert.Equal(t, int64(0), stats.Counts[domain.StatusPending])

	deleted, err := m.deleteTask(ctx, DeleteTaskRequest{TaskID: id, Scope: domain.OwnedBy("user-a")}, nil)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)

	again, err := m.deleteTask(ctx, DeleteTaskRequest{TaskID: id, Scope: domain.OwnedBy("user-a")}, nil)
	require.NoError(t, err)
	assert.False(t, again.Deleted)
	require.NotNil(t, again.Error)
	assert.Equal(t, CodeNotFound, again.Error.Code)

	ping, err := m.ping(ctx, PingRequest{}, nil)
	require.NoError(t, err)
	assert.True(t, ping.Healthy)
	assert.Equal(t, StoreMemory, ping.Store)
}

func TestServiceError_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		target error
	}{
		{"validation", domain.NewValidationError("title", "must not be empty"), CodeValidation, domain.ErrValidation},
		{"wrapped not found", errors.Join(errors.New("lookup"), domain.ErrNotFound), CodeNotFound, domain.ErrNotFound},
		{"unauthenticated", domain.ErrUnauthenticated, CodeUnauthenticated, domain.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sErr := newServiceError(tt.err)
			assert.Equal(t, tt.code, sErr.Code)

			data, err := json.Marshal(TaskReply{Error: sErr})
			require.NoError(t, err)
			var reply TaskReply
			require.NoError(t, json.Unmarshal(data, &reply))

			assert.ErrorIs(t, reply.Error.Err(), tt.target)
		})
	}

	internal := newServiceError(errors.New("connection refused: password=secret"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.NotContains(t, internal.Message, "secret")

	var none *ServiceError
	assert.NoError(t, none.Err())
}

func TestUpdateTaskRequest_PatchSurvivesTransport(t *testing.T) {
	req := UpdateTaskRequest{
		TaskID: 7,
		Scope:  domain.OwnedBy("user-a"),
		Patch: domain.Patch{
			Title:       domain.Some("renamed"),
			Description: domain.Null[string](),
		},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded UpdateTaskRequest
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, decoded.Patch.Title.Set)
	assert.Equal(t, "renamed", decoded.Patch.Title.Value)
	assert.True(t, decoded.Patch.Description.Set)
	assert.True(t, decoded.Patch.Description.Null)
	assert.False(t, decoded.Patch.Status.Set)
	assert.False(t, decoded.Patch.DueDate.Set)
}
