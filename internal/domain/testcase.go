package domain

import "fmt"

// Classification tags a test case as positive, negative, or edge.
type Classification string

const (
	ClassificationPositive Classification = "positive"
	ClassificationNegative Classification = "negative"
	ClassificationEdge     Classification = "edge"
)

// TestCase is a structured, evidence-grounded test case. GroundedOn must
// resolve to chunk ids present in the retrieval set that produced it.
type TestCase struct {
	ID             string         `json:"id"`
	Feature        string         `json:"feature"`
	Scenario       string         `json:"scenario"`
	Expected       string         `json:"expected_result"`
	Steps          []string       `json:"steps"`
	Classification Classification `json:"classification"`
	GroundedOn     []string       `json:"grounded_on"`
}

// ValidateTestCase rejects malformed structured output at the generation
// boundary rather than passing it through.
func ValidateTestCase(tc *TestCase) error {
	if tc == nil {
		return ErrInvalidTestCase
	}
	if tc.ID == "" {
		return fmt.Errorf("%w: test case id", ErrMissingRequiredField)
	}
	if tc.Scenario == "" {
		return fmt.Errorf("%w: test case scenario", ErrMissingRequiredField)
	}
	if len(tc.Steps) == 0 {
		return fmt.Errorf("%w: test case steps", ErrMissingRequiredField)
	}
	if !isValidClassification(tc.Classification) {
		return ErrInvalidClassification
	}
	if len(tc.GroundedOn) == 0 {
		return fmt.Errorf("%w: test case grounding references", ErrMissingRequiredField)
	}
	return nil
}

func isValidClassification(c Classification) bool {
	switch c {
	case ClassificationPositive, ClassificationNegative, ClassificationEdge:
		return true
	}
	return false
}
