package content

import (
	"strings"
)

// Segments splits a record path on "/" and drops empty segments.
func Segments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CleanPath validates p as a record path and returns its canonical form:
// leading "/", no empty, "." or ".." segments, no trailing "/".
func CleanPath(p string) (string, error) {
	raw := p
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, "/")
	if p == "" {
		return "", &ValidationError{Field: "path", Value: raw, Reason: "empty"}
	}
	if !strings.HasPrefix(p, "/") {
		return "", &ValidationError{Field: "path", Value: raw, Reason: "must start with /"}
	}
	segs := Segments(p)
	if len(segs) == 0 {
		return "", &ValidationError{Field: "path", Value: raw, Reason: "root is not a record"}
	}
	for _, s := range segs {
		if err := checkSegment(s); err != nil {
			return "", &ValidationError{Field: "path", Value: raw, Reason: err.Error()}
		}
	}
	return "/" + strings.Join(segs, "/"), nil
}

// ValidateName checks a single path segment proposed by the user.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Value: name, Reason: "empty"}
	}
	if strings.ContainsAny(name, `/\`) {
		return &ValidationError{Field: "name", Value: name, Reason: "must not contain slashes"}
	}
	if err := checkSegment(name); err != nil {
		return &ValidationError{Field: "name", Value: name, Reason: err.Error()}
	}
	return nil
}

type segmentError string

func (e segmentError) Error() string { return string(e) }

func checkSegment(s string) error {
	if s == "." || s == ".." {
		return segmentError("relative segment")
	}
	for _, ch := range s {
		if ch < 32 {
			return segmentError("control character")
		}
	}
	return nil
}

// Name returns the last segment of p.
func Name(p string) string {
	segs := Segments(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Parent returns the folder path that contains p ("/" for top-level entries).
func Parent(p string) string {
	segs := Segments(p)
	if len(segs) <= 1 {
		return "/"
	}
	return "/" + strings.Join(segs[:len(segs)-1], "/")
}

// ChildPath joins a folder path and a new entry name.
func ChildPath(dir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dir = strings.TrimSuffix(strings.TrimSpace(dir), "/")
	return CleanPath(dir + "/" + name)
}

// RenameLeaf replaces the last segment of p with newName.
func RenameLeaf(p, newName string) (string, error) {
	if err := ValidateName(newName); err != nil {
		return "", err
	}
	return ChildPath(Parent(p), newName)
}

// IsUnder reports whether p is a strict descendant of dir.
func IsUnder(p, dir string) bool {
	return strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}

// Rebase moves p from under oldDir to under newDir. p must be oldDir or below it.
func Rebase(p, oldDir, newDir string) string {
	return newDir + strings.TrimPrefix(p, oldDir)
}
