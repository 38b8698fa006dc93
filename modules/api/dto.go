package api

import (
	"time"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
)

// CreateTaskRequest is the HTTP request for creating a task. The owner comes
// from the bearer token.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

// TaskResponse is the HTTP response for a single task.
type TaskResponse struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TaskListResponse is the HTTP response for listing tasks.
type TaskListResponse struct {
	Tasks      []TaskResponse `json:"tasks"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	TotalPages int            `json:"total_pages"`
}

// UserStatsResponse is the HTTP response for the caller's task statistics.
type UserStatsResponse struct {
	UserID    string           `json:"user_id"`
	UserEmail string           `json:"user_email"`
	TaskStats map[string]int64 `json:"task_stats"`
}

// TokenRequest asks for a development access token.
type TokenRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenResponse represents an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// HealthResponse is the HTTP response for the liveness check.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// ReadyResponse is the HTTP response for the readiness check.
type ReadyResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Store     string    `json:"store,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// ErrorResponse is the HTTP response for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func toTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		UserID:      t.UserID,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
}

func toTaskListResponse(p *domain.Page) TaskListResponse {
	tasks := make([]TaskResponse, 0, len(p.Tasks))
	for i := range p.Tasks {
		tasks = append(tasks, toTaskResponse(&p.Tasks[i]))
	}
	return TaskListResponse{
		Tasks:      tasks,
		Total:      p.Total,
		Page:       p.Page,
		Size:       p.Size,
		TotalPages: p.TotalPages,
	}
}

func toStatsMap(counts domain.StatusCounts) map[string]int64 {
	stats := make(map[string]int64, len(domain.AllStatuses()))
	for _, s := range domain.AllStatuses() {
		stats[string(s)] = counts[s]
	}
	return stats
}
