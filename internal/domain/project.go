package domain

import (
	"fmt"
	"time"
)

// Project owns one uploads area and one index area on disk. Projects are
// created on first ingestion and never updated in place; cleanup is manual.
type Project struct {
	ID         string
	Root       string
	UploadsDir string
	IndexDir   string
	CreatedAt  time.Time
}

// ReferenceArtifactName is the canonical file name under which the reference
// HTML artifact is stored in a project's uploads area. Script generation
// resolves the artifact by this name.
const ReferenceArtifactName = "checkout.html"

// ValidateProject validates a Project instance
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}

	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}

	if p.UploadsDir == "" {
		return fmt.Errorf("project UploadsDir is required")
	}

	if p.IndexDir == "" {
		return fmt.Errorf("project IndexDir is required")
	}

	return nil
}
