package sqlgen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/metrics"
)

const (
	ToolGenerate = "generate_sql_query"
	ToolValidate = "validate_sql_query"

	DefaultTemperature = 0.1
	DefaultMaxTokens   = 500

	repairPenalty = 0.8
)

// Values of the sql_generations_total outcome label. OutcomeError means no
// query was produced at all: the call failed or the model skipped the tool.
const (
	OutcomeValid    = "valid"
	OutcomeRepaired = "repaired"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

var (
	ErrNoToolCall     = errors.New("no SQL query generated")
	ErrUnexpectedTool = errors.New("model called an unexpected tool")
)

type generateArgs struct {
	SQLQuery    string  `json:"sql_query" jsonschema_description:"The generated SQL query using SQLite syntax"`
	Explanation string  `json:"explanation" jsonschema_description:"Brief explanation of what the query does"`
	Confidence  float64 `json:"confidence" jsonschema_description:"Confidence level in the generated query (0-1)"`
}

type validateArgs struct {
	SQLQuery     string `json:"sql_query" jsonschema_description:"The SQL query to validate"`
	IsValid      bool   `json:"is_valid" jsonschema_description:"Whether the query is syntactically valid"`
	ErrorMessage string `json:"error_message,omitempty" jsonschema_description:"Error message if query is invalid"`
}

var sqlTools = []llm.Tool{
	llm.FunctionTool(ToolGenerate, "Generate SQL query from natural language", llm.MustSchemaFor[generateArgs]()),
	llm.FunctionTool(ToolValidate, "Validate if a SQL query is syntactically correct", llm.MustSchemaFor[validateArgs]()),
}

// SchemaFunc describes the target database for the prompt.
type SchemaFunc func(ctx context.Context) (string, error)

// DBSchema introspects conn on every call so new tables show up.
func DBSchema(conn *sql.DB) SchemaFunc {
	return func(ctx context.Context) (string, error) {
		s, err := db.Introspect(ctx, conn)
		if err != nil {
			return "", err
		}
		return s.Describe(), nil
	}
}

// Result is one converted question: the final query, the model's
// explanation and confidence, and whether it passed validation.
type Result struct {
	SQL         string     `json:"sql_query"`
	Explanation string     `json:"explanation"`
	Confidence  float64    `json:"confidence"`
	Validation  Validation `json:"validation"`
	Usage       llm.Usage  `json:"usage"`

	// Repaired is set when the model's query failed validation and Fix ran.
	Repaired      bool   `json:"repaired"`
	OriginalSQL   string `json:"original_sql,omitempty"`
	OriginalError string `json:"original_error,omitempty"`
}

// Generator turns questions into SQL through a forced generate_sql_query
// call, repairing the query once when validation fails.
type Generator struct {
	Client      llm.LLMClient
	Schema      SchemaFunc
	Model       string
	Temperature float64
	MaxTokens   int
}

func NewGenerator(client llm.LLMClient, schema SchemaFunc, model string) *Generator {
	return &Generator{
		Client:      client,
		Schema:      schema,
		Model:       model,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

func systemPrompt(schema string) string {
	return fmt.Sprintf(`You are a SQL expert. Convert natural language queries to SQL using the provided tools.

Database Schema:
%s

Rules:
- Use SQLite syntax
- Only use tables and columns that exist in the schema
- Use proper SQL formatting
- Always use the %s function to create the SQL
- Validate the query using %s function if needed`, schema, ToolGenerate, ToolValidate)
}

// Convert asks the model for a query through a forced generate_sql_query
// call, validates it and, when invalid, repairs it once.
func (g *Generator) Convert(ctx context.Context, question string) (*Result, error) {
	schema, err := g.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe schema: %w", err)
	}

	resp, err := g.Client.Generate(ctx, llm.CompletionRequest{
		Model: g.Model,
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt(schema)),
			llm.UserMessage("Convert this to SQL: " + question),
		},
		Tools:       sqlTools,
		ToolChoice:  llm.ForceFunction(ToolGenerate),
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	})
	if err != nil {
		metrics.SQLGenerationsTotal.WithLabelValues(OutcomeError).Inc()
		return nil, fmt.Errorf("failed to generate SQL: %w", err)
	}

	msg := resp.FirstMessage()
	if msg == nil || len(msg.ToolCalls) == 0 {
		metrics.SQLGenerationsTotal.WithLabelValues(OutcomeError).Inc()
		return nil, ErrNoToolCall
	}

	call := msg.ToolCalls[0]
	if call.Function.Name != ToolGenerate {
		metrics.SQLGenerationsTotal.WithLabelValues(OutcomeError).Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedTool, call.Function.Name)
	}

	args := call.Function.Arguments
	if !gjson.Valid(args) {
		metrics.SQLGenerationsTotal.WithLabelValues(OutcomeError).Inc()
		return nil, fmt.Errorf("invalid %s arguments: %q", ToolGenerate, args)
	}
	parsed := gjson.GetMany(args, "sql_query", "explanation", "confidence")

	res := &Result{
		SQL:         CleanSQL(parsed[0].String()),
		Explanation: parsed[1].String(),
		Confidence:  parsed[2].Float(),
		Usage:       resp.Usage,
	}
	res.Validation = Validate(res.SQL)

	outcome := OutcomeValid
	if !res.Validation.Valid {
		res.Repaired = true
		res.OriginalSQL = res.SQL
		res.OriginalError = res.Validation.Error
		res.SQL = Fix(res.SQL, res.Validation.Error)
		res.Explanation = "Fixed query: " + res.Explanation
		res.Confidence *= repairPenalty
		res.Validation = Validate(res.SQL)

		outcome = OutcomeRepaired
		if !res.Validation.Valid {
			outcome = OutcomeInvalid
		}
	}
	metrics.SQLGenerationsTotal.WithLabelValues(outcome).Inc()

	logging.Get().DebugContext(ctx, "sql generated",
		slog.String("outcome", outcome),
		slog.Float64("confidence", res.Confidence),
	)
	return res, nil
}
