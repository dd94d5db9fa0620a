package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianfm/meridian/internal/provider/llm"
)

// wordsPerMinute is the speaking rate used to estimate a script's wall
// duration from its word count (§4.4.1 step 4).
const wordsPerMinute = 150.0

// lengthTolerance is the allowed fractional deviation from a slot's target
// duration before a script is rejected (§4.4.1 step 4: "±40%").
const lengthTolerance = 0.40

// EstimateDurationSec estimates a script's spoken duration from its word
// count at wordsPerMinute.
func EstimateDurationSec(script string) float64 {
	words := len(strings.Fields(script))
	return float64(words) / wordsPerMinute * 60
}

// ValidateLength rejects scripts whose estimated duration falls outside
// ±lengthTolerance of targetDurationSec (§4.4.1 step 4). The error is
// retryable: a fresh generation attempt may land within budget.
func ValidateLength(script string, targetDurationSec int) error {
	estimated := EstimateDurationSec(script)
	target := float64(targetDurationSec)
	lower, upper := target*(1-lengthTolerance), target*(1+lengthTolerance)
	if estimated < lower || estimated > upper {
		return &StageError{
			Kind:    KindTransient,
			Stage:   "length_validation",
			Message: "estimated duration outside tolerance",
			Details: fmt.Sprintf("estimated=%.1fs target=%.1fs tolerance=±%.0f%%", estimated, target, lengthTolerance*100),
		}
	}
	return nil
}

// GenerateScript calls the LLM provider with the composed prompts and
// returns the raw script text and token usage (§4.4.1 step 3).
func GenerateScript(ctx context.Context, provider llm.Provider, systemPrompt, userPrompt string) (*llm.Response, error) {
	req := llm.Request{
		Messages:    ToMessages(systemPrompt, userPrompt),
		Temperature: 0.9,
	}
	if caps := provider.Capabilities(); caps.MaxOutputTokens > 0 {
		req.MaxTokens = caps.MaxOutputTokens
	}
	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, transientErr("script_generation", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, &StageError{Kind: KindTransient, Stage: "script_generation", Message: "model returned empty script"}
	}
	return resp, nil
}
