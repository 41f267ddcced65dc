package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PauloHFS/llm-bootcamp/internal/sqlgen"
)

const (
	DatabaseName = "query_database"

	maxResultRows = 50
)

type DatabaseInput struct {
	Query string `json:"query" jsonschema_description:"A read-only SQLite SELECT statement"`
	Table string `json:"table,omitempty" jsonschema_description:"Main table the query reads from"`
}

// Database runs validated SELECT statements against conn, which should be
// a read-only pool.
func Database(conn *sql.DB) Definition {
	return Definition{
		Name:        DatabaseName,
		Description: "Query a database of employees and departments with SQL",
		Parameters:  GenerateSchema[DatabaseInput](),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in, err := decode[DatabaseInput](args)
			if err != nil {
				return "", err
			}

			rs, err := sqlgen.Execute(ctx, conn, sqlgen.CleanSQL(in.Query))
			if err != nil {
				return "", err
			}

			truncated := rs.Len() > maxResultRows
			if truncated {
				rs.Rows = rs.Rows[:maxResultRows]
			}

			var b strings.Builder
			if err := rs.Render(&b); err != nil {
				return "", err
			}
			if truncated {
				fmt.Fprintf(&b, "(truncated to %d rows)\n", maxResultRows)
			}
			return b.String(), nil
		},
	}
}
