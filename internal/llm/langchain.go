package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChain adapts a langchaingo model to Completer.
type LangChain struct {
	llm   llms.Model
	model string
}

func NewLangChain(model llms.Model, modelName string) *LangChain {
	return &LangChain{llm: model, model: modelName}
}

// NewLangChainOpenAI targets an OpenAI-compatible endpoint through langchaingo.
func NewLangChainOpenAI(baseURL, apiKey, modelName string) (*LangChain, error) {
	key, err := requireKey(apiKey)
	if err != nil {
		return nil, err
	}
	name, err := requireModel(modelName)
	if err != nil {
		return nil, err
	}
	opts := []openai.Option{openai.WithToken(key), openai.WithModel(name)}
	if base := versionedBaseURL(baseURL); base != "" {
		opts = append(opts, openai.WithBaseURL(base))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain openai client: %w", err)
	}
	return NewLangChain(client, name), nil
}

func (l *LangChain) Provider() string { return "langchain" }
func (l *LangChain) Model() string    { return l.model }

func (l *LangChain) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, l.llm, prompt,
		llms.WithTemperature(Temperature),
		llms.WithModel(l.model),
	)
	if err != nil {
		return "", fmt.Errorf("langchain generate: %w", err)
	}
	return out, nil
}
