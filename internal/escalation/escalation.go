package escalation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Task is a human-facing work item created when automation must step aside.
type Task struct {
	ID             string
	ContactID      string
	OrganizationID string
	Title          string
	Detail         string
	DueAt          time.Time
	CreatedAt      time.Time
}

// TaskCreator is the escalation collaborator contract.
type TaskCreator interface {
	CreateTask(ctx context.Context, task Task) (Task, error)
}

// PGStore writes tasks to Postgres for the operator UI to pick up.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	if s.pool == nil {
		return Task{}, fmt.Errorf("escalation pool not configured")
	}
	if strings.TrimSpace(task.ContactID) == "" || strings.TrimSpace(task.Title) == "" {
		return Task{}, fmt.Errorf("contact id and title are required")
	}
	task.ID = uuid.NewString()
	task.CreatedAt = time.Now().UTC()
	if task.DueAt.IsZero() {
		task.DueAt = task.CreatedAt.Add(4 * time.Hour)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO escalation_tasks (id, contact_id, organization_id, title, detail, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.ContactID, task.OrganizationID, task.Title, task.Detail, task.DueAt, task.CreatedAt)
	if err != nil {
		return Task{}, err
	}
	return task, nil
}
