package domain

// ScriptStatus is the terminal state of a script generation attempt.
//
// No artifact, or artifact elements that could not be resolved, yields
// success_unverified: script grounding is advisory, not a hard correctness
// gate. A failed generation call is terminal and carries a diagnostic.
type ScriptStatus string

const (
	ScriptStatusSuccess    ScriptStatus = "success"
	ScriptStatusUnverified ScriptStatus = "success_unverified"
	ScriptStatusFailure    ScriptStatus = "failure"
)

// GeneratedScript is the structured result of script generation.
type GeneratedScript struct {
	Status     ScriptStatus `json:"status"`
	Script     string       `json:"script"`
	Diagnostic string       `json:"diagnostic,omitempty"`
}
