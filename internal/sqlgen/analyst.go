package sqlgen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

var ErrInvalidQuery = errors.New("invalid query")

// Execute validates query and runs it on conn, which should be the read-only
// pool so generated SQL cannot modify data.
func Execute(ctx context.Context, conn *sql.DB, query string) (*db.ResultSet, error) {
	if v := Validate(query); !v.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, v.Error)
	}
	return db.Query(ctx, conn, query)
}

const analystPrompt = "You are a data analyst expert. Analyze SQL query results and provide insights, patterns, and recommendations."

type Analyst struct {
	Client      llm.LLMClient
	Model       string
	Temperature float64
	MaxTokens   int
}

func NewAnalyst(client llm.LLMClient, model string) *Analyst {
	return &Analyst{Client: client, Model: model, Temperature: 0.3, MaxTokens: 300}
}

func (a *Analyst) Analyze(ctx context.Context, query string, rs *db.ResultSet) (string, error) {
	user := fmt.Sprintf(`
SQL Query: %s

Query Results:
%s

Please provide:
1. Summary of the data
2. Key insights and patterns
3. Recommendations based on the findings
4. Any potential data quality issues
`, query, rs.String())

	resp, err := a.Client.Generate(ctx, llm.CompletionRequest{
		Model: a.Model,
		Messages: []llm.Message{
			llm.SystemMessage(analystPrompt),
			llm.UserMessage(user),
		},
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze results: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Queries analysed by "sql demo".
var ExampleQueries = []string{
	"SELECT * FROM employees WHERE salary > 100000;",
	"SELECT department, AVG(salary) as avg_salary FROM employees GROUP BY department;",
	"SELECT name, position, salary FROM employees ORDER BY salary DESC LIMIT 3;",
}

// Questions converted by "sql demo".
var ExampleQuestions = []string{
	"Show me all employees in the Engineering department",
	"Find the average salary by department",
	"List the top 3 highest paid employees",
	"Count how many employees were hired in 2022",
}
