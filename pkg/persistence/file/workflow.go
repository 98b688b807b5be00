package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string // File system root for storing workflows
	mu   sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: filepath.Join(root, "workflows")}
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.root, filepath.Base(id)+".json")
}

// ActiveByBot returns the active workflows attached to the bot, oldest first.
func (wr *WorkflowRepository) ActiveByBot(_ context.Context, botID string) ([]*models.WorkflowGraph, error) {
	workflows, err := readAll[models.WorkflowGraph](wr.root, "*.json")
	if err != nil {
		return nil, err
	}

	active := make([]*models.WorkflowGraph, 0)

	for _, workflow := range workflows {
		if workflow.IsActive && workflow.AppliesTo(botID) {
			active = append(active, workflow)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	return active, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.WorkflowGraph, error) {
	var workflow models.WorkflowGraph

	err := readJSON(wr.path(workflowID), &workflow)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewEntityError("GetByID", "workflow", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

// Save saves a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.WorkflowGraph) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return writeJSON(wr.path(workflow.ID), workflow)
}

// SetActive flips the activity flag of a stored workflow.
func (wr *WorkflowRepository) SetActive(ctx context.Context, id string, active bool) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	workflow.IsActive = active
	workflow.UpdatedAt = time.Now().UTC()

	return writeJSON(wr.path(id), workflow)
}

// Delete removes a workflow file. Deleting a missing workflow is not an error.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(wr.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}
