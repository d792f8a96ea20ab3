package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/prompt"
	"github.com/sqlchat/sqlchat/internal/schema"
)

type Stage string

const (
	StageGenerateSQL Stage = "generate_sql"
	StageExecuteSQL  Stage = "execute_sql"
	StageExplain     Stage = "explain"
)

// StageError names the pipeline stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage carried by err, if any.
func StageOf(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// Executor runs generated SQL against a live database. The returned value's
// String form is embedded in the explanation prompt.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (fmt.Stringer, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, sqlText string) (fmt.Stringer, error)

func (f ExecutorFunc) Execute(ctx context.Context, sqlText string) (fmt.Stringer, error) {
	return f(ctx, sqlText)
}

type Input struct {
	Question string
	// History is the conversation including the pending human turn.
	History []conversation.Turn
	Schema  schema.Provider
	// Executor is nil for the mock variant.
	Executor Executor
}

type Output struct {
	SQL      string
	Response string
	Executed bool
	Reply    string
}

type Pipeline struct {
	builder      *prompt.Builder
	completer    llm.Completer
	stageTimeout time.Duration
	logger       *slog.Logger
}

type Option func(*Pipeline)

// WithStageTimeout bounds each model call.
func WithStageTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = timeout }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(builder *prompt.Builder, completer llm.Completer, opts ...Option) *Pipeline {
	if builder == nil {
		builder = prompt.NewBuilder()
	}
	p := &Pipeline{
		builder:   builder,
		completer: completer,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run generates SQL for the question, executes it when an executor is
// present and asks the model to explain the outcome. Stages run strictly in
// sequence and the first failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, in Input) (Output, error) {
	if p.completer == nil {
		return Output{}, fmt.Errorf("completer is required")
	}
	if in.Schema == nil {
		return Output{}, fmt.Errorf("schema provider is required")
	}

	history := conversation.FormatHistory(in.History)

	schemaText, err := in.Schema.DescribeSchema(ctx)
	if err != nil {
		return Output{}, p.fail(ctx, StageGenerateSQL, fmt.Errorf("describe schema: %w", err))
	}
	vars := prompt.Variables{
		prompt.VarSchema:      schemaText,
		prompt.VarChatHistory: history,
		prompt.VarQuestion:    in.Question,
	}
	rawSQL, err := p.complete(ctx, StageGenerateSQL, prompt.TemplateSQL, vars)
	if err != nil {
		return Output{}, err
	}
	sqlText := StripMarkdownSQL(rawSQL)

	out := Output{SQL: sqlText}
	explainTemplate := prompt.TemplateExplainMock
	if in.Executor != nil {
		start := time.Now()
		result, err := in.Executor.Execute(ctx, sqlText)
		observability.ObservePipelineStage(string(StageExecuteSQL), time.Since(start), err)
		if err != nil {
			return Output{}, p.fail(ctx, StageExecuteSQL, err)
		}
		out.Executed = true
		if result != nil {
			out.Response = result.String()
		}
		explainTemplate = prompt.TemplateExplainLive

		// The live schema is re-read so the explanation sees the database as it
		// is after execution.
		schemaText, err = in.Schema.DescribeSchema(ctx)
		if err != nil {
			return Output{}, p.fail(ctx, StageExplain, fmt.Errorf("describe schema: %w", err))
		}
		vars[prompt.VarSchema] = schemaText
		vars[prompt.VarResponse] = out.Response
	}
	vars[prompt.VarQuery] = sqlText

	reply, err := p.complete(ctx, StageExplain, explainTemplate, vars)
	if err != nil {
		return Output{}, err
	}
	out.Reply = strings.TrimSpace(reply)
	return out, nil
}

func (p *Pipeline) complete(ctx context.Context, stage Stage, id prompt.TemplateID, vars prompt.Variables) (string, error) {
	text, err := p.builder.Build(ctx, id, vars)
	if err != nil {
		return "", p.fail(ctx, stage, err)
	}

	stageCtx := ctx
	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	start := time.Now()
	completion, err := p.completer.Complete(stageCtx, text)
	elapsed := time.Since(start)
	observability.ObservePipelineStage(string(stage), elapsed, err)
	if err != nil {
		return "", p.fail(ctx, stage, err)
	}
	p.logger.DebugContext(ctx, "pipeline stage completed",
		append(observability.RequestAttrs(ctx),
			slog.String("stage", string(stage)),
			slog.Int("prompt_bytes", len(text)),
			slog.String("duration", elapsed.String()),
		)...,
	)
	return completion, nil
}

func (p *Pipeline) fail(ctx context.Context, stage Stage, err error) error {
	p.logger.WarnContext(ctx, "pipeline stage failed",
		append(observability.RequestAttrs(ctx),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)...,
	)
	return &StageError{Stage: stage, Err: err}
}

// StripMarkdownSQL trims whitespace and removes a surrounding ``` fence.
func StripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
