package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/hadiudoit11/merlin/pkg/pipeline"
)

// Generator wraps a langchaingo model for text generation.
type Generator struct {
	llm llms.Model
}

// NewGenerator builds a Generator for a resolved credential. It satisfies
// pipeline.GeneratorFactory.
func NewGenerator(cred pipeline.Credential) (pipeline.Generator, error) {
	var model llms.Model
	var err error

	switch cred.Provider {
	case "anthropic":
		model, err = anthropic.New(
			anthropic.WithToken(cred.APIKey),
			anthropic.WithModel(cred.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case "openai":
		model, err = openai.New(
			openai.WithToken(cred.APIKey),
			openai.WithModel(cred.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cred.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cred.Provider)
	}

	return &Generator{llm: model}, nil
}

// Generate generates text based on a prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return response, nil
}
