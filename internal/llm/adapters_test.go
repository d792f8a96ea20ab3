package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"

	"github.com/sqlchat/sqlchat/internal/config"
)

type fakeChatModel struct {
	input   []*schema.Message
	options *model.Options
	reply   string
	err     error
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.input = input
	f.options = model.GetCommonOptions(nil, opts...)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestEinoCompleteSendsSingleUserMessage(t *testing.T) {
	fake := &fakeChatModel{reply: "SELECT 1;"}
	completer := NewEino(fake, "eino-openai", "llama-3.1-8b-instant")

	out, err := completer.Complete(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "SELECT 1;" {
		t.Fatalf("Complete() = %q", out)
	}
	if len(fake.input) != 1 || fake.input[0].Role != schema.User || fake.input[0].Content != "prompt text" {
		t.Fatalf("input = %#v", fake.input)
	}
	if fake.options.Temperature == nil || *fake.options.Temperature != 0 {
		t.Fatalf("temperature option = %v", fake.options.Temperature)
	}
	if fake.options.Model == nil || *fake.options.Model != "llama-3.1-8b-instant" {
		t.Fatalf("model option = %v", fake.options.Model)
	}
	if provider, model := Describe(completer); provider != "eino-openai" || model != "llama-3.1-8b-instant" {
		t.Fatalf("Describe() = %s/%s", provider, model)
	}
	if provider, model := Describe(completerFunc(nil)); provider != "unknown" || model != "unknown" {
		t.Fatalf("Describe(plain) = %s/%s", provider, model)
	}
}

func TestEinoCompletePropagatesErrors(t *testing.T) {
	boom := errors.New("upstream down")
	completer := NewEino(&fakeChatModel{err: boom}, "claude", "m")
	if _, err := completer.Complete(context.Background(), "p"); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped upstream error", err)
	}
}

type fakeLangChainModel struct {
	prompt  string
	options llms.CallOptions
}

func (f *fakeLangChainModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(&f.options)
	}
	if len(messages) == 1 && len(messages[0].Parts) == 1 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.prompt = text.Text
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "explained"}}}, nil
}

func (f *fakeLangChainModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChainCompleteUsesZeroTemperature(t *testing.T) {
	fake := &fakeLangChainModel{}
	completer := NewLangChain(fake, "llama-3.1-8b-instant")
	out, err := completer.Complete(context.Background(), "explain it")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "explained" {
		t.Fatalf("Complete() = %q", out)
	}
	if fake.prompt != "explain it" {
		t.Fatalf("prompt = %q", fake.prompt)
	}
	if fake.options.Temperature != 0 {
		t.Fatalf("temperature = %v", fake.options.Temperature)
	}
	if fake.options.Model != "llama-3.1-8b-instant" {
		t.Fatalf("model = %q", fake.options.Model)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	base := config.AIConfig{
		BaseURL: "https://api.groq.com/openai",
		APIKey:  "k",
		Model:   "llama-3.1-8b-instant",
	}

	base.Provider = config.ProviderOpenAICompatible
	completer, err := New(context.Background(), base)
	if err != nil {
		t.Fatalf("New(openai-compatible) error = %v", err)
	}
	if _, ok := completer.(*OpenAICompatible); !ok {
		t.Fatalf("completer = %T", completer)
	}

	base.Provider = config.ProviderLangChain
	completer, err = New(context.Background(), base)
	if err != nil {
		t.Fatalf("New(langchain) error = %v", err)
	}
	if _, ok := completer.(*LangChain); !ok {
		t.Fatalf("completer = %T", completer)
	}

	base.Provider = "mystery"
	if _, err := New(context.Background(), base); err == nil {
		t.Fatal("expected unsupported provider error")
	}

	base.Provider = config.ProviderOpenAICompatible
	base.APIKey = ""
	if _, err := New(context.Background(), base); err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestVersionedBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://api.groq.com/openai":     "https://api.groq.com/openai/v1",
		"https://api.groq.com/openai/v1/": "https://api.groq.com/openai/v1",
		"":                                "",
	}
	for in, want := range cases {
		if got := versionedBaseURL(in); got != want {
			t.Fatalf("versionedBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

type completerFunc func(context.Context, string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
