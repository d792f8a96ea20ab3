package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const claudeMaxTokens = 2048

// Eino adapts an eino chat model to Completer. The prompt is sent as a single
// user message.
type Eino struct {
	chat     model.BaseChatModel
	provider string
	model    string
}

func NewEino(chat model.BaseChatModel, provider, modelName string) *Eino {
	return &Eino{chat: chat, provider: provider, model: modelName}
}

func (e *Eino) Provider() string { return e.provider }
func (e *Eino) Model() string    { return e.model }

func (e *Eino) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := e.chat.Generate(ctx,
		[]*schema.Message{schema.UserMessage(prompt)},
		model.WithTemperature(Temperature),
		model.WithModel(e.model),
	)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", e.provider, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%s generate: empty response", e.provider)
	}
	return msg.Content, nil
}

func NewEinoOpenAI(ctx context.Context, baseURL, apiKey, modelName string, timeout time.Duration) (*Eino, error) {
	key, err := requireKey(apiKey)
	if err != nil {
		return nil, err
	}
	name, err := requireModel(modelName)
	if err != nil {
		return nil, err
	}
	temperature := float32(Temperature)
	chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      key,
		BaseURL:     versionedBaseURL(baseURL),
		Model:       name,
		Temperature: &temperature,
		Timeout:     defaultTimeout(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}
	return NewEino(chat, "eino-openai", name), nil
}

func NewEinoClaude(ctx context.Context, baseURL, apiKey, modelName string) (*Eino, error) {
	key, err := requireKey(apiKey)
	if err != nil {
		return nil, err
	}
	name, err := requireModel(modelName)
	if err != nil {
		return nil, err
	}
	temperature := float32(Temperature)
	cfg := &claude.Config{
		APIKey:      key,
		Model:       name,
		MaxTokens:   claudeMaxTokens,
		Temperature: &temperature,
	}
	if baseURL != "" {
		cfg.BaseURL = &baseURL
	}
	chat, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create claude chat model: %w", err)
	}
	return NewEino(chat, "claude", name), nil
}

func NewEinoGemini(ctx context.Context, apiKey, modelName string) (*Eino, error) {
	key, err := requireKey(apiKey)
	if err != nil {
		return nil, err
	}
	name, err := requireModel(modelName)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	temperature := float32(Temperature)
	chat, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       name,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini chat model: %w", err)
	}
	return NewEino(chat, "gemini", name), nil
}
