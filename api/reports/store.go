// Package reports persists saved report definitions. This layer is a thin
// CRUD over the primary store; the specs it holds are opaque JSON that only
// the analytics compiler interprets, at run time.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a saved report does not exist.
var ErrNotFound = errors.New("saved report not found")

// SavedReport is a persisted report definition.
type SavedReport struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Spec        json.RawMessage `json:"spec"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// StoreConfig configures a Store.
type StoreConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
	}
	return nil
}

// Store provides CRUD access to saved reports.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{log: cfg.Logger, pool: cfg.Pool}, nil
}

// List returns all saved reports, most recently updated first.
func (s *Store) List(ctx context.Context) ([]SavedReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, spec, created_at, updated_at
		FROM saved_reports
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved reports: %w", err)
	}
	defer rows.Close()

	out := []SavedReport{}
	for rows.Next() {
		var r SavedReport
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Spec, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one saved report by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (SavedReport, error) {
	var r SavedReport
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, spec, created_at, updated_at
		FROM saved_reports
		WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &r.Description, &r.Spec, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedReport{}, ErrNotFound
	}
	if err != nil {
		return SavedReport{}, fmt.Errorf("failed to get saved report: %w", err)
	}
	return r, nil
}

// Create persists a new saved report and returns it with generated fields.
func (s *Store) Create(ctx context.Context, name, description string, spec json.RawMessage) (SavedReport, error) {
	r := SavedReport{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Spec:        spec,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO saved_reports (id, name, description, spec)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, r.ID, r.Name, r.Description, r.Spec).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return SavedReport{}, fmt.Errorf("failed to create saved report: %w", err)
	}
	s.log.Debug("saved report created", "id", r.ID, "name", r.Name)
	return r, nil
}

// Update replaces a saved report's name, description and spec.
func (s *Store) Update(ctx context.Context, id uuid.UUID, name, description string, spec json.RawMessage) (SavedReport, error) {
	r := SavedReport{
		ID:          id,
		Name:        name,
		Description: description,
		Spec:        spec,
	}
	err := s.pool.QueryRow(ctx, `
		UPDATE saved_reports
		SET name = $2, description = $3, spec = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, id, name, description, spec).Scan(&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedReport{}, ErrNotFound
	}
	if err != nil {
		return SavedReport{}, fmt.Errorf("failed to update saved report: %w", err)
	}
	return r, nil
}

// Delete removes a saved report.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM saved_reports WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Duplicate copies an existing saved report under a "(copy)" name.
func (s *Store) Duplicate(ctx context.Context, id uuid.UUID) (SavedReport, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return SavedReport{}, err
	}
	return s.Create(ctx, src.Name+" (copy)", src.Description, src.Spec)
}
