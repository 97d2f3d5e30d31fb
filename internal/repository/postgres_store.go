package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaijie-yu/google-ui/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore is a PostgreSQL implementation of the Repository interface.
// Rows carry a serial position column so listing order is insertion order
// and survives upserts.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPool opens a connection pool and checks that the database answers.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ListElements returns all elements in insertion order.
func (s *PostgresStore) ListElements(ctx context.Context) ([]models.Element, error) {
	rows, err := s.db.Query(ctx, "SELECT id, name, locator, locator_type, description FROM elements ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []models.Element
	for rows.Next() {
		var el models.Element
		if err := rows.Scan(&el.ID, &el.Name, &el.Locator, &el.LocatorType, &el.Description); err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	return elements, rows.Err()
}

// GetElement retrieves an element by its ID.
func (s *PostgresStore) GetElement(ctx context.Context, id string) (*models.Element, error) {
	var el models.Element
	err := s.db.QueryRow(ctx, "SELECT id, name, locator, locator_type, description FROM elements WHERE id = $1", id).
		Scan(&el.ID, &el.Name, &el.Locator, &el.LocatorType, &el.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &el, nil
}

// CreateElement appends a new element.
func (s *PostgresStore) CreateElement(ctx context.Context, element *models.Element) error {
	_, err := s.db.Exec(ctx, "INSERT INTO elements (id, name, locator, locator_type, description) VALUES ($1, $2, $3, $4, $5)",
		element.ID, element.Name, element.Locator, string(element.LocatorType), element.Description)
	return err
}

// DeleteElement removes an element.
func (s *PostgresStore) DeleteElement(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM elements WHERE id = $1", id)
	return err
}

// ListWorkflows returns all workflows in store order.
func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx, "SELECT id, name, steps, last_run_status, last_run_date FROM workflows ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// GetWorkflow retrieves a workflow by its ID.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx, "SELECT id, name, steps, last_run_status, last_run_date FROM workflows WHERE id = $1", id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return wf, err
}

// UpsertWorkflow inserts the workflow or replaces the row with the same ID.
// The position column is not touched on conflict.
func (s *PostgresStore) UpsertWorkflow(ctx context.Context, workflow *models.Workflow) error {
	steps := workflow.Steps
	if steps == nil {
		steps = []models.Step{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	status := workflow.LastRunStatus
	if status == "" {
		status = models.RunStatusNone
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO workflows (id, name, steps, last_run_status, last_run_date)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    steps = EXCLUDED.steps,
		    last_run_status = EXCLUDED.last_run_status,
		    last_run_date = EXCLUDED.last_run_date`,
		workflow.ID, workflow.Name, string(stepsJSON), string(status), workflow.LastRunDate)
	return err
}

// DeleteWorkflow removes a workflow.
func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	return err
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var (
		wf        models.Workflow
		stepsJSON []byte
		status    string
		lastRun   *time.Time
	)
	if err := row.Scan(&wf.ID, &wf.Name, &stepsJSON, &status, &lastRun); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepsJSON, &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of workflow %s: %w", wf.ID, err)
	}
	wf.LastRunStatus = models.RunStatus(status)
	wf.LastRunDate = lastRun
	return &wf, nil
}
