package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petervdpas/cipherstudio/internal/content"
)

// Project is a row from the projects table.
type Project struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const projectCols = `id, owner, name, description, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var created, updated string
	if err := row.Scan(&p.ID, &p.Owner, &p.Name, &p.Description, &created, &updated); err != nil {
		return p, err
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func projectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &content.ValidationError{Field: "name", Value: name, Reason: "must not be empty"}
	}
	return name, nil
}

// CreateProject inserts a project owned by owner together with its seed records.
func (d *DB) CreateProject(ctx context.Context, owner, name, description string, seed []content.FileRecord) (Project, error) {
	name, err := projectName(name)
	if err != nil {
		return Project{}, err
	}
	now := d.stamp()
	p := Project{
		ID:          uuid.NewString(),
		Owner:       owner,
		Name:        name,
		Description: strings.TrimSpace(description),
	}

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (`+projectCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.Owner, p.Name, p.Description, now, now,
		); err != nil {
			return err
		}
		for _, f := range seed {
			f.ProjectID = p.ID
			if err := insertFile(ctx, tx, f, now); err != nil {
				return fmt.Errorf("seed %s: %w", f.Path, err)
			}
		}
		return nil
	})
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", constraintErr(err))
	}

	p.CreatedAt = parseTime(now)
	p.UpdatedAt = p.CreatedAt
	log.Infof("created project %s (%q, %d seed records)", p.ID, p.Name, len(seed))
	return p, nil
}

// ListProjects returns the projects of owner, most recently updated first.
func (d *DB) ListProjects(ctx context.Context, owner string) ([]Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+projectCols+` FROM projects WHERE owner = ? ORDER BY updated_at DESC, name`, owner)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns a single project by ID.
func (d *DB) GetProject(ctx context.Context, id string) (Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, err := scanProject(d.db.QueryRowContext(ctx,
		`SELECT `+projectCols+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("project %s: %w", id, content.ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// UpdateProject changes the name and description of a project.
func (d *DB) UpdateProject(ctx context.Context, id, name, description string) (Project, error) {
	name, err := projectName(name)
	if err != nil {
		return Project{}, err
	}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
			name, strings.TrimSpace(description), d.stamp(), id)
		if err != nil {
			return err
		}
		return checkAffected(res, "project "+id)
	})
	if err != nil {
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	return d.GetProject(ctx, id)
}

// DeleteProject removes a project and, by cascade, all of its files.
func (d *DB) DeleteProject(ctx context.Context, id string) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return checkAffected(res, "project "+id)
	})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	log.Infof("deleted project %s", id)
	return nil
}

// touch bumps the project's updated_at inside a file mutation.
func touch(ctx context.Context, tx *sql.Tx, projectID, now string) error {
	_, err := tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, projectID)
	return err
}
