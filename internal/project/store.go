// Package project manages the on-disk layout of per-project knowledge bases.
// Each project owns an isolated directory subtree under the data root; nothing
// is shared between projects.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

const (
	uploadsDirName = "uploads"
	indexDirName   = "index"
	suffixLen      = 6
)

// Store creates and resolves project directories under a single data root.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore creates a project store rooted at dataRoot. The root directory is
// created if it does not exist.
func NewStore(dataRoot string) (*Store, error) {
	if dataRoot == "" {
		return nil, fmt.Errorf("data root cannot be empty")
	}
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}
	return &Store{root: dataRoot, now: time.Now}, nil
}

// Create allocates a fresh project with a unique id and its uploads and index
// directories. Directory creation failure aborts the project entirely.
func (s *Store) Create() (*domain.Project, error) {
	id := s.newID()
	root := filepath.Join(s.root, id)

	project := &domain.Project{
		ID:         id,
		Root:       root,
		UploadsDir: filepath.Join(root, uploadsDirName),
		IndexDir:   filepath.Join(root, indexDirName),
		CreatedAt:  s.now().UTC(),
	}

	for _, dir := range []string{project.UploadsDir, project.IndexDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create project directory %s: %w", dir, err)
		}
	}

	return project, nil
}

// Resolve returns the project for an existing id, or ErrProjectNotFound when
// its directory is missing.
func (s *Store) Resolve(id string) (*domain.Project, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, domain.ErrProjectNotFound
	}

	root := filepath.Join(s.root, id)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, domain.ErrProjectNotFound
	}

	project := &domain.Project{
		ID:         id,
		Root:       root,
		UploadsDir: filepath.Join(root, uploadsDirName),
		IndexDir:   filepath.Join(root, indexDirName),
		CreatedAt:  info.ModTime().UTC(),
	}
	return project, nil
}

// List returns the ids of all projects under the data root, in directory
// order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read data root: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "proj_") {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// newID builds a project id from the creation timestamp and a short random
// suffix, keeping ids sortable by creation time yet collision free.
func (s *Store) newID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	return fmt.Sprintf("proj_%d_%s", s.now().Unix(), suffix)
}
