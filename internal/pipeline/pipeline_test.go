package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/prompt"
	"github.com/sqlchat/sqlchat/internal/schema"
)

type fakeCompleter struct {
	prompts []string
	replies []string
	errAt   int
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, text string) (string, error) {
	f.prompts = append(f.prompts, text)
	call := len(f.prompts)
	if f.err != nil && call == f.errAt {
		return "", f.err
	}
	if call > len(f.replies) {
		return "", fmt.Errorf("unexpected call %d", call)
	}
	return f.replies[call-1], nil
}

type stringer string

func (s stringer) String() string { return string(s) }

func mockHistory(question string) []conversation.Turn {
	state := conversation.NewState(conversation.VariantMock)
	return state.With(conversation.HumanTurn(question))
}

func TestRunMockScenario(t *testing.T) {
	completer := &fakeCompleter{replies: []string{
		"SELECT name FROM customers LIMIT 10;",
		"This query lists ten customer names. It is a demonstration only.",
	}}
	p := New(prompt.NewBuilder(), completer)

	out, err := p.Run(context.Background(), Input{
		Question: "List 10 customer names",
		History:  mockHistory("List 10 customer names"),
		Schema:   schema.Mock{},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(completer.prompts) != 2 {
		t.Fatalf("completer calls = %d, want 2", len(completer.prompts))
	}

	stage1 := completer.prompts[0]
	if !strings.Contains(stage1, "CREATE TABLE customers") {
		t.Fatalf("stage 1 prompt missing schema:\n%s", stage1)
	}
	if !strings.Contains(stage1, "Question: List 10 customer names") {
		t.Fatalf("stage 1 prompt missing question:\n%s", stage1)
	}
	if !strings.Contains(stage1, "Human: List 10 customer names") {
		t.Fatalf("stage 1 prompt missing pending human turn in history:\n%s", stage1)
	}

	stage2 := completer.prompts[1]
	if !strings.Contains(stage2, "not actually being executed on a real database") {
		t.Fatalf("stage 2 prompt must state no execution:\n%s", stage2)
	}
	if !strings.Contains(stage2, "<SQL>SELECT name FROM customers LIMIT 10;</SQL>") {
		t.Fatalf("stage 2 prompt missing query:\n%s", stage2)
	}

	if out.SQL != "SELECT name FROM customers LIMIT 10;" || out.Executed {
		t.Fatalf("out = %+v", out)
	}
	if out.Reply != "This query lists ten customer names. It is a demonstration only." {
		t.Fatalf("Reply = %q", out.Reply)
	}
}

func TestRunLiveScenarioFeedsResultIntoExplanation(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"```sql\nSELECT 1;\n```", "It returns one."}}
	var executed []string
	executor := ExecutorFunc(func(_ context.Context, sqlText string) (fmt.Stringer, error) {
		executed = append(executed, sqlText)
		if len(completer.prompts) != 1 {
			t.Fatalf("execution must happen between stages, calls = %d", len(completer.prompts))
		}
		return stringer("[(1,)]"), nil
	})
	schemaCalls := 0
	provider := schemaFunc(func(context.Context) (string, error) {
		schemaCalls++
		return "CREATE TABLE t (\n\tid INTEGER\n)", nil
	})

	out, err := New(nil, completer).Run(context.Background(), Input{
		Question: "select one",
		History:  mockHistory("select one"),
		Schema:   provider,
		Executor: executor,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(executed) != 1 || executed[0] != "SELECT 1;" {
		t.Fatalf("executed = %v", executed)
	}
	if schemaCalls != 2 {
		t.Fatalf("schema calls = %d, want 2", schemaCalls)
	}
	if !strings.Contains(completer.prompts[1], "SQL Response: [(1,)]") {
		t.Fatalf("stage 2 prompt missing response:\n%s", completer.prompts[1])
	}
	if !out.Executed || out.Response != "[(1,)]" || out.Reply != "It returns one." {
		t.Fatalf("out = %+v", out)
	}
}

func TestRunStopsAfterExecutionFailure(t *testing.T) {
	completer := &fakeCompleter{replies: []string{"SELEC oops", "unused"}}
	boom := errors.New("syntax error at or near SELEC")
	executor := ExecutorFunc(func(context.Context, string) (fmt.Stringer, error) { return nil, boom })

	_, err := New(nil, completer).Run(context.Background(), Input{
		Question: "q",
		Schema:   schema.Mock{},
		Executor: executor,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped execution error", err)
	}
	if stage, ok := StageOf(err); !ok || stage != StageExecuteSQL {
		t.Fatalf("stage = %q, ok=%v", stage, ok)
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("explanation stage ran after failed execution: calls = %d", len(completer.prompts))
	}
}

func TestRunReportsFailingStage(t *testing.T) {
	upstream := errors.New("503 from provider")

	stage1 := &fakeCompleter{errAt: 1, err: upstream}
	_, err := New(nil, stage1).Run(context.Background(), Input{Question: "q", Schema: schema.Mock{}})
	if stage, _ := StageOf(err); stage != StageGenerateSQL {
		t.Fatalf("stage = %q, want %q", stage, StageGenerateSQL)
	}
	if !errors.Is(err, upstream) {
		t.Fatalf("error = %v", err)
	}

	stage2 := &fakeCompleter{replies: []string{"SELECT 1"}, errAt: 2, err: upstream}
	_, err = New(nil, stage2).Run(context.Background(), Input{Question: "q", Schema: schema.Mock{}})
	if stage, _ := StageOf(err); stage != StageExplain {
		t.Fatalf("stage = %q, want %q", stage, StageExplain)
	}
}

func TestRunReportsSchemaFailureAsGenerateStage(t *testing.T) {
	provider := schemaFunc(func(context.Context) (string, error) { return "", errors.New("db unreachable") })
	completer := &fakeCompleter{}
	_, err := New(nil, completer).Run(context.Background(), Input{Question: "q", Schema: provider})
	if stage, _ := StageOf(err); stage != StageGenerateSQL {
		t.Fatalf("stage = %q", stage)
	}
	if len(completer.prompts) != 0 {
		t.Fatal("completer should not be called when schema fails")
	}
}

func TestStripMarkdownSQL(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1;\n```": "SELECT 1;",
		"```\nSELECT 2;\n```":    "SELECT 2;",
		"  SELECT 3;  \n":        "SELECT 3;",
	}
	for in, want := range cases {
		if got := StripMarkdownSQL(in); got != want {
			t.Fatalf("StripMarkdownSQL(%q) = %q, want %q", in, got, want)
		}
	}
}

type schemaFunc func(ctx context.Context) (string, error)

func (f schemaFunc) DescribeSchema(ctx context.Context) (string, error) { return f(ctx) }
