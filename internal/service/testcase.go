package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/caseforge/internal/domain"
	"github.com/cloo-solutions/caseforge/internal/telemetry"
)

// MissingDocumentationMarker is the escape hatch the model uses when the
// retrieved evidence does not cover the query. Its presence anywhere in the
// raw output takes precedence over any test cases alongside it.
const MissingDocumentationMarker = "MISSING_DOCUMENTATION"

const testCaseSystemPrompt = `You are a senior QA engineer. You design test cases strictly from the
documentation excerpts provided. You never invent behavior that the excerpts
do not state.

Respond with a single JSON object of the form:
{"test_cases": [{"id": "...", "feature": "...", "scenario": "...",
"expected_result": "...", "steps": ["..."], "classification": "positive|negative|edge",
"grounded_on": ["<chunk id>"]}]}

Every test case must cite, in grounded_on, the ids of the excerpts it is
derived from. Use only the chunk ids given in the prompt.

If the excerpts do not contain enough information to design test cases for
the request, respond instead with:
{"missing_documentation": true, "message": "MISSING_DOCUMENTATION: <what is missing>"}`

// Retriever defines the retrieval interface consumed by grounded generation
type Retriever interface {
	Retrieve(ctx context.Context, projectID, query string, k int) ([]domain.Evidence, error)
}

// TestCaseService generates evidence-grounded test cases for a project.
type TestCaseService struct {
	retriever Retriever
	generator Generator
	topK      int
}

// NewTestCaseService creates a new TestCaseService instance
func NewTestCaseService(retriever Retriever, generator Generator, topK int) *TestCaseService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &TestCaseService{
		retriever: retriever,
		generator: generator,
		topK:      topK,
	}
}

// TestCaseSet is the outcome of a grounded test case generation.
type TestCaseSet struct {
	Cases    []domain.TestCase `json:"test_cases"`
	Evidence []domain.Evidence `json:"evidence"`
}

type testCaseEnvelope struct {
	TestCases            []domain.TestCase `json:"test_cases"`
	MissingDocumentation bool              `json:"missing_documentation"`
	Message              string            `json:"message"`
}

// Generate retrieves evidence for the query and produces test cases grounded
// on it. Every returned case cites only chunk ids from the retrieval set; a
// case citing anything else downgrades the whole result to an
// insufficient-evidence error rather than passing through fabricated
// grounding.
func (s *TestCaseService) Generate(ctx context.Context, projectID, query string) (*TestCaseSet, error) {
	ctx, span := telemetry.StartSpan(ctx, "TestCaseService.Generate", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "generate_testcases",
	})
	defer span.End()

	evidence, err := s.retriever.Retrieve(ctx, projectID, query, s.topK)
	if err != nil {
		return nil, err
	}
	if len(evidence) == 0 {
		return nil, domain.NewInsufficientEvidenceError(
			MissingDocumentationMarker + ": the project index contains no relevant documentation")
	}

	prompt := buildEvidencePrompt(query, evidence,
		"Design test cases for the request above, strictly from the excerpts.")

	raw, err := s.generator.GenerateJSON(ctx, testCaseSystemPrompt, prompt)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewGenerationError(err)
	}

	var envelope testCaseEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		if strings.Contains(raw, MissingDocumentationMarker) {
			return nil, domain.NewInsufficientEvidenceError(strings.TrimSpace(raw))
		}
		span.SetError(err)
		return nil, domain.NewGenerationError(fmt.Errorf("malformed generation output: %w", err))
	}

	if envelope.MissingDocumentation || strings.Contains(envelope.Message, MissingDocumentationMarker) {
		return nil, domain.NewInsufficientEvidenceError(envelope.Message)
	}
	if len(envelope.TestCases) == 0 {
		return nil, domain.NewInsufficientEvidenceError("")
	}

	known := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		known[ev.ChunkID] = true
	}

	for i := range envelope.TestCases {
		tc := &envelope.TestCases[i]
		if err := domain.ValidateTestCase(tc); err != nil {
			span.SetError(err)
			return nil, domain.NewGenerationError(err)
		}
		for _, ref := range tc.GroundedOn {
			if !known[ref] {
				// Fabricated citation: treat the whole result as
				// ungrounded instead of surfacing it.
				return nil, domain.NewInsufficientEvidenceError(fmt.Sprintf(
					"test case %s cites %s, which is not in the retrieved evidence", tc.ID, ref))
			}
		}
	}

	return &TestCaseSet{Cases: envelope.TestCases, Evidence: evidence}, nil
}

// buildEvidencePrompt renders the query and the verbatim retrieval set. Chunk
// text is never paraphrased before it reaches the model.
func buildEvidencePrompt(query string, evidence []domain.Evidence, instruction string) string {
	var sb strings.Builder
	sb.WriteString("Request: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocumentation excerpts:\n")
	for _, ev := range evidence {
		fmt.Fprintf(&sb, "\n[chunk id: %s] (source: %s)\n%s\n", ev.ChunkID, ev.Metadata.SourceDocument, ev.Text)
	}
	sb.WriteString("\n")
	sb.WriteString(instruction)
	return sb.String()
}
