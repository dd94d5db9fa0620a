// Package generator transforms a queued segment into a ready one: retrieval,
// script generation, tone and lore validation, synthesis, and asset storage
// (§4.4). Mastering (loudness normalization) is a separate worker; this
// package hands off to it via an audio_finalize job once rendering completes.
package generator

import "fmt"

// Kind classifies a generation-stage error per §7's error taxonomy, used to
// decide whether the enclosing job should retry.
type Kind string

const (
	// KindInput marks a bad payload or missing segment: fails immediately,
	// counted against job retries.
	KindInput Kind = "input"

	// KindTransient marks a retrieval/LLM/TTS/storage failure: retried with
	// exponential backoff.
	KindTransient Kind = "transient"

	// KindConsistency marks a major lore contradiction: terminal, no
	// automatic retry.
	KindConsistency Kind = "consistency"
)

// StageError is the structured error shape component code reports, per §7:
// "kind + message + optional details". Stage names the workflow step
// (e.g. "retrieval", "script_generation", "consistency_check") where the
// failure occurred.
type StageError struct {
	Kind    Kind
	Stage   string
	Message string
	Details string
}

func (e *StageError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("generator: %s: %s (%s)", e.Stage, e.Message, e.Details)
	}
	return fmt.Sprintf("generator: %s: %s", e.Stage, e.Message)
}

// Retryable reports whether the job system should schedule a retry for this
// error. Only KindConsistency is terminal.
func (e *StageError) Retryable() bool { return e.Kind != KindConsistency }

func inputErr(stage, msg string) error {
	return &StageError{Kind: KindInput, Stage: stage, Message: msg}
}

func transientErr(stage string, err error) error {
	return &StageError{Kind: KindTransient, Stage: stage, Message: "operation failed", Details: err.Error()}
}

func consistencyErr(stage, msg string) error {
	return &StageError{Kind: KindConsistency, Stage: stage, Message: msg}
}
