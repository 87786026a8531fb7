package recap

import (
	"context"
	"fmt"
	"strings"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/transcript"
)

const defaultSystemPrompt = "Summarize this D&D session transcript."

// Generator produces narrative recaps from transcripts.
type Generator struct {
	provider     Provider
	systemPrompt string
	model        string
}

// NewGenerator creates a recap generator over the given provider.
func NewGenerator(provider Provider, systemPrompt, model string) *Generator {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Generator{
		provider:     provider,
		systemPrompt: systemPrompt,
		model:        model,
	}
}

// Generate formats the transcript as "name: text" dialogue and asks the LLM
// for a recap. Failures are surfaced as RecapGenerationFailed; the caller
// decides whether that fails the surrounding operation.
func (g *Generator) Generate(ctx context.Context, t *transcript.Transcript) (string, error) {
	var lines []string
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", seg.DisplayName(), text))
	}

	resp, err := g.provider.Complete(ctx, CompletionRequest{
		Model: g.model,
		Messages: []Message{
			{Role: "system", Content: g.systemPrompt},
			{Role: "user", Content: "Here is the session transcript:\n\n" + strings.Join(lines, "\n")},
		},
	})
	if err != nil {
		return "", apperr.RecapGenerationFailed(err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", apperr.RecapGenerationFailed(fmt.Errorf("empty recap from %s", g.provider.Name()))
	}
	return resp.Content, nil
}
