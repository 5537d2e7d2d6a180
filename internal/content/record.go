package content

import (
	"context"
	"sort"
	"time"
)

// FileRecord is one persisted file or folder of a project.
type FileRecord struct {
	ID        string    `json:"id,omitempty"`
	ProjectID string    `json:"project_id"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	IsFolder  bool      `json:"is_folder"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Backend is the persistence collaborator behind a Store.
// Implementations enforce one record per (projectID, path) and must:
//   - return records from ListFiles ordered lexicographically by path
//   - return ErrDuplicatePath on a uniqueness violation
//   - return ErrNotFound when an update/delete matches no record
type Backend interface {
	ListFiles(ctx context.Context, projectID string) ([]FileRecord, error)
	InsertFile(ctx context.Context, rec FileRecord) error
	UpdateFileContent(ctx context.Context, projectID, path, content string) error
	UpdateFilePath(ctx context.Context, projectID, oldPath, newPath string) error
	DeleteFile(ctx context.Context, projectID, path string) error
}

// Documents returns the non-folder records, preserving order.
func Documents(records []FileRecord) []FileRecord {
	out := make([]FileRecord, 0, len(records))
	for _, r := range records {
		if !r.IsFolder {
			out = append(out, r)
		}
	}
	return out
}

// SortByPath orders records the way a Backend lists them.
func SortByPath(records []FileRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
}
