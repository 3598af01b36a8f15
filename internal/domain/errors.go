package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code      string
	Message   string
	Err       error
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeEmbeddingFailed      = "EMBEDDING_FAILED"
	ErrCodeIndexError           = "INDEX_ERROR"
	ErrCodeGenerationFailed     = "GENERATION_FAILED"
	ErrCodeInsufficientEvidence = "INSUFFICIENT_EVIDENCE"
	ErrCodeGroundingViolation   = "GROUNDING_VIOLATION"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery            = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidTestCase       = NewDomainError(ErrCodeValidation, "invalid test case")
	ErrInvalidClassification = NewDomainError(ErrCodeValidation, "invalid test case classification")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrProjectNotFound  = NewDomainError(ErrCodeNotFound, "project not found")
	ErrArtifactNotFound = NewDomainError(ErrCodeNotFound, "reference artifact not found")
)

// NewEmbeddingError reports an embedding failure for one document. The whole
// ingestion run for that invocation aborts; prior documents stay committed.
func NewEmbeddingError(document string, err error) *DomainError {
	return &DomainError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   fmt.Sprintf("embedding failed for document %q", document),
		Err:       err,
		Retryable: true,
	}
}

// NewIndexError wraps a vector index storage failure. Retryable by the caller.
func NewIndexError(err error) *DomainError {
	return &DomainError{
		Code:      ErrCodeIndexError,
		Message:   "vector index operation failed",
		Err:       err,
		Retryable: true,
	}
}

// NewGenerationError wraps an external generation call failure, distinct from a
// legitimate insufficient-evidence outcome.
func NewGenerationError(err error) *DomainError {
	return &DomainError{
		Code:      ErrCodeGenerationFailed,
		Message:   "generation call failed",
		Err:       err,
		Retryable: true,
	}
}

// NewInsufficientEvidenceError carries the model's explanation for declining to
// generate when the retrieved evidence does not cover the query.
func NewInsufficientEvidenceError(message string) *DomainError {
	if message == "" {
		message = "retrieved evidence is insufficient for this query"
	}
	return NewDomainError(ErrCodeInsufficientEvidence, message)
}

// IsRetryable reports whether the caller may safely retry the failed operation.
// Upsert idempotency makes retries of ingestion safe.
func IsRetryable(err error) bool {
	if de, ok := err.(*DomainError); ok {
		return de.Retryable
	}
	return false
}
