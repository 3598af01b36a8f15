package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/telemetry"
)

const scriptSystemPrompt = `You are a browser automation engineer. You write Playwright scripts in
JavaScript that exercise the page described by the reference HTML and the
documentation excerpts provided. Use only selectors that exist in the
reference HTML when it is given.

Respond with a single JSON object of the form:
{"script": "<the complete script>", "selectors": ["<each CSS selector the script uses>"]}`

// artifactHTMLLimit bounds how much of the reference artifact goes into the
// prompt.
const artifactHTMLLimit = 16000

// ScriptService generates browser automation scripts grounded on a project's
// reference artifact and documentation.
type ScriptService struct {
	projects  ProjectStoreInterface
	retriever Retriever
	generator Generator
	topK      int
}

// NewScriptService creates a new ScriptService instance
func NewScriptService(projects ProjectStoreInterface, retriever Retriever, generator Generator, topK int) *ScriptService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &ScriptService{
		projects:  projects,
		retriever: retriever,
		generator: generator,
		topK:      topK,
	}
}

type scriptEnvelope struct {
	Script    string   `json:"script"`
	Selectors []string `json:"selectors"`
}

// Generate produces a browser script for the request. The status encodes how
// far grounding went: success means every selector the script uses resolves
// in the reference artifact, success_unverified means no artifact was
// available or some selector could not be verified, failure means the
// generation call itself failed.
func (s *ScriptService) Generate(ctx context.Context, projectID, query string) (*domain.GeneratedScript, error) {
	ctx, span := telemetry.StartSpan(ctx, "ScriptService.Generate", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "generate_script",
	})
	defer span.End()

	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	project, err := s.projects.Resolve(projectID)
	if err != nil {
		return nil, err
	}

	artifact, artifactErr := s.loadArtifact(project)

	evidence, err := s.retriever.Retrieve(ctx, projectID, query, s.topK)
	if err != nil {
		return nil, err
	}

	prompt := buildScriptPrompt(query, evidence, artifact)
	raw, err := s.generator.GenerateJSON(ctx, scriptSystemPrompt, prompt)
	if err != nil {
		span.SetError(err)
		return &domain.GeneratedScript{
			Status:     domain.ScriptStatusFailure,
			Diagnostic: fmt.Sprintf("generation call failed: %v", err),
		}, nil
	}

	var envelope scriptEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		span.SetError(err)
		return &domain.GeneratedScript{
			Status:     domain.ScriptStatusFailure,
			Diagnostic: fmt.Sprintf("malformed generation output: %v", err),
		}, nil
	}
	if envelope.Script == "" {
		return &domain.GeneratedScript{
			Status:     domain.ScriptStatusFailure,
			Diagnostic: "generation returned an empty script",
		}, nil
	}

	if errors.Is(artifactErr, domain.ErrArtifactNotFound) {
		return &domain.GeneratedScript{
			Status:     domain.ScriptStatusUnverified,
			Script:     envelope.Script,
			Diagnostic: "no reference artifact available; selectors are unverified",
		}, nil
	}

	if unresolved := unresolvedSelectors(artifact, envelope.Selectors); len(unresolved) > 0 {
		return &domain.GeneratedScript{
			Status:     domain.ScriptStatusUnverified,
			Script:     envelope.Script,
			Diagnostic: fmt.Sprintf("selectors not found in reference artifact: %s", strings.Join(unresolved, ", ")),
		}, nil
	}

	return &domain.GeneratedScript{Status: domain.ScriptStatusSuccess, Script: envelope.Script}, nil
}

// loadArtifact reads the project's reference artifact by its canonical name,
// falling back to any HTML upload when the canonical file is missing. Returns
// domain.ErrArtifactNotFound when the project has no HTML upload at all.
func (s *ScriptService) loadArtifact(project *domain.Project) (string, error) {
	canonical := filepath.Join(project.UploadsDir, domain.ReferenceArtifactName)
	if data, err := os.ReadFile(canonical); err == nil {
		return string(data), nil
	}

	entries, err := os.ReadDir(project.UploadsDir)
	if err != nil {
		return "", domain.ErrArtifactNotFound
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".html") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if data, err := os.ReadFile(filepath.Join(project.UploadsDir, name)); err == nil {
			return string(data), nil
		}
	}
	return "", domain.ErrArtifactNotFound
}

// unresolvedSelectors returns the selectors that cannot be located in the
// artifact HTML. Verification is a textual anchor check on the id, name or
// class the selector targets; structural CSS matching is not attempted.
func unresolvedSelectors(artifact string, selectors []string) []string {
	var unresolved []string
	for _, selector := range selectors {
		if !selectorResolves(artifact, selector) {
			unresolved = append(unresolved, selector)
		}
	}
	return unresolved
}

var classAttrPattern = regexp.MustCompile(`class=["']([^"']*)["']`)

// attrResolves reports whether the artifact carries the attribute with the
// exact value, in either quote style.
func attrResolves(artifact, attr, value string) bool {
	return strings.Contains(artifact, fmt.Sprintf(`%s="%s"`, attr, value)) ||
		strings.Contains(artifact, fmt.Sprintf(`%s='%s'`, attr, value))
}

// classResolves matches the class name against class attribute tokens only,
// so prose mentioning the name does not count as grounding.
func classResolves(artifact, name string) bool {
	for _, m := range classAttrPattern.FindAllStringSubmatch(artifact, -1) {
		for _, token := range strings.Fields(m[1]) {
			if token == name {
				return true
			}
		}
	}
	return false
}

func selectorResolves(artifact, selector string) bool {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return false
	}

	// Use the last simple selector of a descendant chain.
	parts := strings.Fields(selector)
	last := parts[len(parts)-1]

	switch {
	case strings.HasPrefix(last, "#"):
		return attrResolves(artifact, "id", last[1:])
	case strings.HasPrefix(last, "."):
		return classResolves(artifact, last[1:])
	case strings.Contains(last, "[name="):
		start := strings.Index(last, "[name=")
		name := strings.Trim(last[start+len("[name="):strings.LastIndex(last, "]")], `"'`)
		return attrResolves(artifact, "name", name)
	default:
		tag := last
		if i := strings.IndexAny(tag, "[:#."); i > 0 {
			tag = tag[:i]
		}
		return strings.Contains(artifact, "<"+tag)
	}
}

func buildScriptPrompt(query string, evidence []domain.Evidence, artifact string) string {
	var sb strings.Builder
	sb.WriteString("Request: ")
	sb.WriteString(query)

	if len(evidence) > 0 {
		sb.WriteString("\n\nDocumentation excerpts:\n")
		for _, ev := range evidence {
			fmt.Fprintf(&sb, "\n[chunk id: %s] (source: %s)\n%s\n", ev.ChunkID, ev.Metadata.SourceDocument, ev.Text)
		}
	}

	if artifact != "" {
		if len(artifact) > artifactHTMLLimit {
			artifact = artifact[:artifactHTMLLimit]
		}
		sb.WriteString("\n\nReference HTML:\n")
		sb.WriteString(artifact)
	}

	sb.WriteString("\n\nWrite the script for the request above.")
	return sb.String()
}
