package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/petervdpas/cipherstudio/internal/content"
)

// DB is the content.Backend of the studio.
var _ content.Backend = (*DB)(nil)

const fileCols = `id, project_id, path, content, is_folder, created_at, updated_at`

// ListFiles returns a project's records ordered by path (byte order).
func (d *DB) ListFiles(ctx context.Context, projectID string) ([]content.FileRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+fileCols+` FROM project_files WHERE project_id = ? ORDER BY path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []content.FileRecord{}
	for rows.Next() {
		var f content.FileRecord
		var folder int
		var created, updated string
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Content, &folder, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.IsFolder = folder != 0
		f.CreatedAt = parseTime(created)
		f.UpdatedAt = parseTime(updated)
		files = append(files, f)
	}
	return files, rows.Err()
}

// InsertFile stores a new record. The (project, path) pair must be free.
func (d *DB) InsertFile(ctx context.Context, rec content.FileRecord) error {
	now := d.stamp()
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertFile(ctx, tx, rec, now); err != nil {
			return err
		}
		return touch(ctx, tx, rec.ProjectID, now)
	})
	if err != nil {
		return fmt.Errorf("insert %s: %w", rec.Path, constraintErr(err))
	}
	return nil
}

func insertFile(ctx context.Context, tx *sql.Tx, rec content.FileRecord, now string) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	folder := 0
	if rec.IsFolder {
		folder = 1
		rec.Content = ""
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO project_files (`+fileCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.Path, rec.Content, folder, now, now,
	)
	return err
}

// UpdateFileContent overwrites the content of the record at path.
func (d *DB) UpdateFileContent(ctx context.Context, projectID, path, body string) error {
	now := d.stamp()
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE project_files SET content = ?, updated_at = ? WHERE project_id = ? AND path = ?`,
			body, now, projectID, path)
		if err != nil {
			return err
		}
		if err := checkAffected(res, path); err != nil {
			return err
		}
		return touch(ctx, tx, projectID, now)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

// UpdateFilePath moves a single record to newPath.
func (d *DB) UpdateFilePath(ctx context.Context, projectID, oldPath, newPath string) error {
	now := d.stamp()
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE project_files SET path = ?, updated_at = ? WHERE project_id = ? AND path = ?`,
			newPath, now, projectID, oldPath)
		if err != nil {
			return err
		}
		if err := checkAffected(res, oldPath); err != nil {
			return err
		}
		return touch(ctx, tx, projectID, now)
	})
	if err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, constraintErr(err))
	}
	return nil
}

// DeleteFile removes exactly the record at path.
func (d *DB) DeleteFile(ctx context.Context, projectID, path string) error {
	now := d.stamp()
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM project_files WHERE project_id = ? AND path = ?`, projectID, path)
		if err != nil {
			return err
		}
		if err := checkAffected(res, path); err != nil {
			return err
		}
		return touch(ctx, tx, projectID, now)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
