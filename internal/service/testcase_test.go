package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/caseforge/internal/domain"
)

const testProjectID = "proj_1700000000_abc123"

func validCaseJSON(groundedOn []string) string {
	tc := domain.TestCase{
		ID:             "TC-001",
		Feature:        "discount codes",
		Scenario:       "apply a valid discount code at checkout",
		Expected:       "order total is reduced",
		Steps:          []string{"open checkout", "enter SAVE10", "submit"},
		Classification: domain.ClassificationPositive,
		GroundedOn:     groundedOn,
	}
	payload, _ := json.Marshal(map[string]any{"test_cases": []domain.TestCase{tc}})
	return string(payload)
}

func TestGenerateTestCases_GroundedResult(t *testing.T) {
	evidence := evidenceFixture(testProjectID)
	retriever := &fakeRetriever{evidence: evidence}
	generator := &fakeGenerator{output: validCaseJSON([]string{evidence[0].ChunkID, evidence[1].ChunkID})}
	svc := NewTestCaseService(retriever, generator, 5)

	result, err := svc.Generate(context.Background(), testProjectID, "test the discount code feature")
	require.NoError(t, err)
	require.Len(t, result.Cases, 1)
	assert.Equal(t, "TC-001", result.Cases[0].ID)
	assert.Equal(t, domain.ClassificationPositive, result.Cases[0].Classification)
	assert.Equal(t, evidence, result.Evidence)
}

func TestGenerateTestCases_PromptCarriesVerbatimEvidence(t *testing.T) {
	evidence := evidenceFixture(testProjectID)
	retriever := &fakeRetriever{evidence: evidence}
	generator := &fakeGenerator{output: validCaseJSON([]string{evidence[0].ChunkID})}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test the discount code feature")
	require.NoError(t, err)

	require.Len(t, generator.users, 1)
	prompt := generator.users[0]
	for _, ev := range evidence {
		assert.Contains(t, prompt, ev.ChunkID)
		assert.Contains(t, prompt, ev.Text, "chunk text must reach the model unparaphrased")
	}
	assert.Contains(t, prompt, "test the discount code feature")
}

func TestGenerateTestCases_RejectsOutOfSetGrounding(t *testing.T) {
	evidence := evidenceFixture(testProjectID)
	retriever := &fakeRetriever{evidence: evidence}
	generator := &fakeGenerator{output: validCaseJSON([]string{"proj_1_x::other.txt::ffffffffffff::chunk_9"})}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test the discount code feature")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeInsufficientEvidence, de.Code)
	assert.Contains(t, de.Message, "chunk_9")
}

func TestGenerateTestCases_MissingDocumentationEnvelope(t *testing.T) {
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	generator := &fakeGenerator{
		output: `{"missing_documentation": true, "message": "MISSING_DOCUMENTATION: no refund policy documented"}`,
	}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test refunds")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeInsufficientEvidence, de.Code)
	assert.Contains(t, de.Message, "no refund policy documented")
}

func TestGenerateTestCases_MarkerInRawOutput(t *testing.T) {
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	generator := &fakeGenerator{output: "MISSING_DOCUMENTATION: nothing about shipping"}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test shipping")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeInsufficientEvidence, de.Code)
}

func TestGenerateTestCases_EmptyRetrievalSet(t *testing.T) {
	retriever := &fakeRetriever{}
	generator := &fakeGenerator{output: validCaseJSON([]string{"anything"})}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test anything")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeInsufficientEvidence, de.Code)
	assert.Empty(t, generator.users, "no generation call without evidence")
}

func TestGenerateTestCases_GenerationFailure(t *testing.T) {
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	generator := &fakeGenerator{err: errors.New("model overloaded")}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test the discount code feature")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeGenerationFailed, de.Code)
	assert.True(t, domain.IsRetryable(err))
}

func TestGenerateTestCases_MalformedOutput(t *testing.T) {
	retriever := &fakeRetriever{evidence: evidenceFixture(testProjectID)}
	generator := &fakeGenerator{output: "here are some test cases: 1) ..."}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test the discount code feature")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeGenerationFailed, de.Code)
}

func TestGenerateTestCases_InvalidCaseRejected(t *testing.T) {
	evidence := evidenceFixture(testProjectID)
	retriever := &fakeRetriever{evidence: evidence}
	generator := &fakeGenerator{
		output: `{"test_cases": [{"id": "TC-001", "scenario": "something", "steps": ["step"],
			"classification": "maybe", "grounded_on": ["` + evidence[0].ChunkID + `"]}]}`,
	}
	svc := NewTestCaseService(retriever, generator, 5)

	_, err := svc.Generate(context.Background(), testProjectID, "test the discount code feature")
	require.Error(t, err)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeGenerationFailed, de.Code)
}

func TestGenerateTestCases_RetrieverErrorPropagates(t *testing.T) {
	retriever := &fakeRetriever{err: domain.ErrProjectNotFound}
	svc := NewTestCaseService(retriever, &fakeGenerator{}, 5)

	_, err := svc.Generate(context.Background(), "proj_404_nosuch", "query")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}
