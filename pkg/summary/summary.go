// Package summary produces per-file transcript summaries for case workers.
package summary

import (
	"context"
	"errors"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"casefile/pkg/ai"
	"casefile/pkg/logger"
)

type Generator struct {
	aiClient  ai.Client
	encoder   string
	maxTokens int
}

type GeneratorParams struct {
	AIClient  ai.Client
	Encoder   string
	MaxTokens int
}

func NewGenerator(params GeneratorParams) *Generator {
	encoder := params.Encoder
	if encoder == "" {
		encoder = "o200k_base"
	}
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	return &Generator{
		aiClient:  params.AIClient,
		encoder:   encoder,
		maxTokens: maxTokens,
	}
}

// Generate summarizes one file's transcript. Transcripts longer than the
// token budget are truncated before the request, the model context is the
// binding constraint, not the recording length.
func (g *Generator) Generate(ctx context.Context, filename, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("transcript is empty")
	}

	capped, err := g.capTokens(text)
	if err != nil {
		return "", err
	}
	if len(capped) < len(text) {
		logger.Warn("[Summary] Transcript truncated to token budget", "file", filename, "max_tokens", g.maxTokens)
	}

	res, err := g.aiClient.GenerateCompletion(
		ctx,
		capped,
		ai.WithSystemPrompts(ai.SummaryPrompt),
	)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(res), nil
}

func (g *Generator) capTokens(text string) (string, error) {
	// every token spans at least one byte, shorter texts cannot exceed the
	// budget and skip the encoder round-trip
	if len(text) <= g.maxTokens {
		return text, nil
	}

	enc, err := tiktoken.GetEncoding(g.encoder)
	if err != nil {
		return "", err
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= g.maxTokens {
		return text, nil
	}
	return enc.Decode(tokens[:g.maxTokens]), nil
}
