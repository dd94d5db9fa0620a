// Package llm defines the Provider interface for the Large Language Model
// backend that drives segment script generation (§4.4.1 step 3).
//
// Meridian's generator needs a single request/response call per segment, not
// a streaming pipeline — scripts are generated in full before being handed to
// TTS — so the interface is deliberately smaller than a general-purpose chat
// API: one Complete call, plus the metadata the generator needs to enforce
// context-window and length budgets.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message is a single turn in the prompt sent to the model.
type Message struct {
	// Role is one of "system", "user", "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Request carries everything needed to generate one segment script.
type Request struct {
	// Messages is the ordered prompt: system instructions, retrieved context,
	// and the generation instruction (§4.4.1 step 2).
	Messages []Message

	// Temperature controls output randomness, in [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the length of the generated completion. Zero means use
	// the provider's default.
	MaxTokens int
}

// Usage reports token accounting for a single request/response pair.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the full text returned by the model for one Request.
type Response struct {
	Content string
	Usage   Usage
}

// Capabilities describes static, model-level limits the generator needs to
// budget prompts against.
type Capabilities struct {
	ContextWindow   int
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend (Anthropic, OpenAI,
// Ollama, ...).
//
// Implementations must be safe for concurrent use from multiple goroutines,
// and must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// CountTokens estimates how many tokens messages would consume in the
	// model's context window. The result need not be exact. The generator
	// does not call it, so prompts are sent without a token-count check.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() Capabilities

	// Name identifies the provider for logging and fallback-chain reporting.
	Name() string
}
