package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowSelect = `
	SELECT
		w.id
	  , w.name
	  , w.is_active
	  , COALESCE(array_agg(wb.bot_id::text) FILTER (WHERE wb.bot_id IS NOT NULL), '{}')
	  , w.created_at
	  , w.updated_at
	FROM workflows w
	LEFT JOIN workflow_bots wb ON wb.workflow_id = w.id
`

// ActiveByBot returns the active workflows attached to the bot, oldest first.
func (r *WorkflowRepository) ActiveByBot(ctx context.Context, botID string) ([]*models.WorkflowGraph, error) {
	query := workflowSelect + `
		WHERE w.is_active AND EXISTS (
			SELECT 1 FROM workflow_bots x WHERE x.workflow_id = w.id AND x.bot_id = $1
		)
		GROUP BY w.id
		ORDER BY w.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.WorkflowGraph, 0)

	for rows.Next() {
		workflow, err := scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		err := r.loadGraph(ctx, workflow)
		if err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

// GetByID retrieves a workflow with its nodes and connections.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	row := r.db.QueryRowContext(ctx, workflowSelect+" WHERE w.id = $1 GROUP BY w.id", id)

	workflow, err := scanWorkflowBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	err = r.loadGraph(ctx, workflow)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save saves a workflow to the database, replacing its nodes, connections and bot links.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowGraph) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	// Start transaction
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery, workflow.ID, workflow.Name, workflow.IsActive, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	for _, table := range []string{"workflow_connections", "workflow_nodes", "workflow_bots"} {
		_, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE workflow_id = $1", workflow.ID)
		if err != nil {
			return fmt.Errorf("failed to delete existing %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO workflow_bots (workflow_id, bot_id) SELECT $1, unnest($2::uuid[])",
		workflow.ID, pq.Array(workflow.BotIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow bots: %w", err)
	}

	err = r.saveNodes(ctx, tx, workflow)
	if err != nil {
		return err
	}

	err = r.saveConnections(ctx, tx, workflow)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) saveNodes(ctx context.Context, tx *sql.Tx, workflow *models.WorkflowGraph) error {
	nodeQuery := `
		INSERT INTO workflow_nodes (workflow_id, id, position, node_type, config, position_x, position_y)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for index, node := range workflow.Nodes {
		configJSON, err := json.Marshal(node.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal node config: %w", err)
		}

		_, err = tx.ExecContext(ctx, nodeQuery,
			workflow.ID,
			node.ID,
			index,
			node.Type,
			configJSON,
			node.Position.X,
			node.Position.Y,
		)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) saveConnections(ctx context.Context, tx *sql.Tx, workflow *models.WorkflowGraph) error {
	connectionQuery := `
		INSERT INTO workflow_connections (workflow_id, id, position, source_node_id, source_handle, target_node_id, target_handle)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for index, connection := range workflow.Connections {
		if connection.ID == "" {
			connection.ID = fmt.Sprintf("%s-%s-%d", connection.SourceNodeID, connection.TargetNodeID, index)
		}

		_, err := tx.ExecContext(ctx, connectionQuery,
			workflow.ID,
			connection.ID,
			index,
			connection.SourceNodeID,
			connection.SourceHandle,
			connection.TargetNodeID,
			connection.TargetHandle,
		)
		if err != nil {
			return fmt.Errorf("failed to save connection %s: %w", connection.ID, err)
		}
	}

	return nil
}

// SetActive flips the activity flag of a stored workflow.
func (r *WorkflowRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET is_active = $2, updated_at = $3 WHERE id = $1",
		id, active, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError("SetActive", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// Delete removes a workflow; nodes, connections and bot links cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) loadGraph(ctx context.Context, workflow *models.WorkflowGraph) error {
	nodes, err := r.loadNodes(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to load nodes of workflow %s: %w", workflow.ID, err)
	}

	connections, err := r.loadConnections(ctx, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to load connections of workflow %s: %w", workflow.ID, err)
	}

	workflow.Nodes = nodes
	workflow.Connections = connections

	return nil
}

func (r *WorkflowRepository) loadNodes(ctx context.Context, workflowID string) ([]*models.Node, error) {
	query := `
		SELECT id, node_type, config, position_x, position_y
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		var (
			node       models.Node
			configJSON []byte
		)

		err := rows.Scan(&node.ID, &node.Type, &configJSON, &node.Position.X, &node.Position.Y)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		if len(configJSON) > 0 {
			err = json.Unmarshal(configJSON, &node.Config)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal node config: %w", err)
			}
		}

		if node.Config == nil {
			node.Config = make(map[string]any)
		}

		nodes = append(nodes, &node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (r *WorkflowRepository) loadConnections(ctx context.Context, workflowID string) ([]*models.Connection, error) {
	query := `
		SELECT id, source_node_id, source_handle, target_node_id, target_handle
		FROM workflow_connections
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow connections: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	connections := make([]*models.Connection, 0)

	for rows.Next() {
		var connection models.Connection

		err := rows.Scan(
			&connection.ID,
			&connection.SourceNodeID,
			&connection.SourceHandle,
			&connection.TargetNodeID,
			&connection.TargetHandle,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}

		connections = append(connections, &connection)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

func scanWorkflowBase(scanner rowScanner) (*models.WorkflowGraph, error) {
	var (
		workflow models.WorkflowGraph
		botIDs   pq.StringArray
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.IsActive,
		&botIDs,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.BotIDs = botIDs

	return &workflow, nil
}
