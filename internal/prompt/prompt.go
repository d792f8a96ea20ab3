package prompt

import (
	"context"
	"fmt"
	"sort"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

type TemplateID string

const (
	TemplateSQL         TemplateID = "sql"
	TemplateExplainMock TemplateID = "explain_mock"
	TemplateExplainLive TemplateID = "explain_live"
)

const (
	VarSchema      = "schema"
	VarChatHistory = "chat_history"
	VarQuestion    = "question"
	VarQuery       = "query"
	VarResponse    = "response"
)

// Variables maps placeholder names to their values.
type Variables map[string]string

const sqlTemplate = `You are a data analyst at a company. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, write a SQL query that would answer the user's question. Take the conversation history into account.

<SCHEMA>{schema}</SCHEMA>

Conversation History: {chat_history}

Write only the SQL query and nothing else. Do not wrap the SQL query in any other text, not even backticks.

For example:
Question: Which 3 items have been ordered the most?
SQL Query: SELECT product_name, SUM(quantity) as total_ordered FROM orders GROUP BY product_name ORDER BY total_ordered DESC LIMIT 3;
Question: List 10 customer names
SQL Query: SELECT name FROM customers LIMIT 10;

Your turn:

Question: {question}
SQL Query:`

const explainMockTemplate = `You are a data analyst at a company. You are interacting with a user who is asking questions about the company's database.
Based on the table schema below, question, and SQL query, write a natural language response explaining the query and what it would do if executed.
<SCHEMA>{schema}</SCHEMA>

Conversation History: {chat_history}
SQL Query: <SQL>{query}</SQL>
User question: {question}

Provide a detailed explanation of the SQL query and how it addresses the user's question. Also, mention that this is a demonstration and the query is not actually being executed on a real database.`

const explainLiveTemplate = `You are a data analyst at a company. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, question, sql query, and sql response, write a natural language response.
<SCHEMA>{schema}</SCHEMA>

Conversation History: {chat_history}
SQL Query: <SQL>{query}</SQL>
User question: {question}
SQL Response: {response}`

type definition struct {
	text     string
	required []string
}

var definitions = map[TemplateID]definition{
	TemplateSQL: {
		text:     sqlTemplate,
		required: []string{VarSchema, VarChatHistory, VarQuestion},
	},
	TemplateExplainMock: {
		text:     explainMockTemplate,
		required: []string{VarSchema, VarChatHistory, VarQuery, VarQuestion},
	},
	TemplateExplainLive: {
		text:     explainLiveTemplate,
		required: []string{VarSchema, VarChatHistory, VarQuery, VarQuestion, VarResponse},
	},
}

// Builder renders the fixed templates with Python-style {name} substitution.
type Builder struct {
	templates map[TemplateID]einoprompt.ChatTemplate
}

func NewBuilder() *Builder {
	templates := make(map[TemplateID]einoprompt.ChatTemplate, len(definitions))
	for id, def := range definitions {
		templates[id] = einoprompt.FromMessages(schema.FString, schema.UserMessage(def.text))
	}
	return &Builder{templates: templates}
}

func (b *Builder) Build(ctx context.Context, id TemplateID, vars Variables) (string, error) {
	def, ok := definitions[id]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", id)
	}
	var missing []string
	for _, name := range def.required {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("prompt template %q missing variables %v", id, missing)
	}

	values := make(map[string]any, len(vars))
	for key, value := range vars {
		values[key] = value
	}
	messages, err := b.templates[id].Format(ctx, values)
	if err != nil {
		return "", fmt.Errorf("format prompt template %q: %w", id, err)
	}
	if len(messages) != 1 {
		return "", fmt.Errorf("prompt template %q produced %d messages", id, len(messages))
	}
	return messages[0].Content, nil
}
