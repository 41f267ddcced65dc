package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/sqlgen"
)

// sqlKit bundles what the sql subcommands share.
type sqlKit struct {
	pool    *db.DualPool
	gen     *sqlgen.Generator
	analyst *sqlgen.Analyst
}

func (a *app) sqlKit(ctx context.Context) (*sqlKit, error) {
	pool, err := a.demoDB(ctx)
	if err != nil {
		return nil, err
	}
	client, err := a.chatClient()
	if err != nil {
		return nil, err
	}
	return &sqlKit{
		pool:    pool,
		gen:     sqlgen.NewGenerator(client, sqlgen.DBSchema(pool.Read), a.chatModel()),
		analyst: sqlgen.NewAnalyst(client, a.chatModel()),
	}, nil
}

// ask converts one question, prints the query and, when execute is set,
// runs it against the demo database.
func (t *sqlKit) ask(ctx context.Context, w io.Writer, question string, execute, analyze bool) error {
	label(w, "Question", question)
	res, err := t.gen.Convert(ctx, question)
	if err != nil {
		return err
	}
	label(w, "SQL", res.SQL)
	label(w, "Explanation", res.Explanation)
	label(w, "Confidence", fmt.Sprintf("%.2f", res.Confidence))
	if res.Repaired {
		warn(w, "repaired: %q failed validation (%s)", res.OriginalSQL, res.OriginalError)
	}
	if !res.Validation.Valid {
		warn(w, "invalid query: %s", res.Validation.Error)
		return nil
	}
	if !execute {
		return nil
	}
	return t.run(ctx, w, res.SQL, analyze)
}

func (t *sqlKit) run(ctx context.Context, w io.Writer, query string, analyze bool) error {
	rs, err := sqlgen.Execute(ctx, t.pool.Read, query)
	if err != nil {
		return err
	}
	colorDim.Fprintf(w, "%d rows\n", rs.Len())
	if err := rs.Render(w); err != nil {
		return err
	}
	if !analyze {
		return nil
	}
	insight, err := t.analyst.Analyze(ctx, query, rs)
	if err != nil {
		return err
	}
	header(w, "Analysis")
	fmt.Fprintln(w, insight)
	return nil
}

func newSQLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Text to SQL over the employees demo database",
	}

	var noExec, analyze bool
	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Convert a question to SQL and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.sqlKit(cmd.Context())
			if err != nil {
				return err
			}
			return t.ask(cmd.Context(), a.out, strings.Join(args, " "), !noExec, analyze)
		},
	}
	ask.Flags().BoolVar(&noExec, "no-exec", false, "only generate the query")
	ask.Flags().BoolVar(&analyze, "analyze", false, "ask the model to interpret the results")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Run a SELECT query and have the model interpret the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.sqlKit(cmd.Context())
			if err != nil {
				return err
			}
			return t.run(cmd.Context(), a.out, strings.Join(args, " "), true)
		},
	}

	demo := &cobra.Command{
		Use:   "demo",
		Short: "Convert the example questions and analyze the example queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := a.sqlKit(ctx)
			if err != nil {
				return err
			}
			header(a.out, "Natural language to SQL")
			for _, q := range sqlgen.ExampleQuestions {
				rule(a.out)
				if err := t.ask(ctx, a.out, q, true, false); err != nil {
					if ctx.Err() != nil {
						return err
					}
					warn(a.out, "Error: %v", err)
				}
			}
			header(a.out, "Query analysis")
			for _, q := range sqlgen.ExampleQueries {
				rule(a.out)
				label(a.out, "Query", q)
				if err := t.run(ctx, a.out, q, true); err != nil {
					if ctx.Err() != nil {
						return err
					}
					warn(a.out, "Error: %v", err)
				}
			}
			return nil
		},
	}

	repl := &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := a.sqlKit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Ask about the employees database. Type 'schema' to see the tables or 'exit' to quit.")
			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				colorHeader.Fprint(a.out, "\nQuestion: ")
				if !sc.Scan() {
					fmt.Fprintln(a.out)
					return sc.Err()
				}
				line := strings.TrimSpace(sc.Text())
				switch strings.ToLower(line) {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "schema":
					if err := printSchema(ctx, a.out, t.pool); err != nil {
						warn(a.out, "Error: %v", err)
					}
					continue
				}
				if err := t.ask(ctx, a.out, line, true, false); err != nil {
					if ctx.Err() != nil {
						return err
					}
					warn(a.out, "Error: %v", err)
				}
			}
		},
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Show the demo database tables and columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := a.demoDB(cmd.Context())
			if err != nil {
				return err
			}
			return printSchema(cmd.Context(), a.out, pool)
		},
	}

	cmd.AddCommand(ask, analyzeCmd, demo, repl, schema)
	return cmd
}

func printSchema(ctx context.Context, w io.Writer, pool *db.DualPool) error {
	s, err := db.Introspect(ctx, pool.Read)
	if err != nil {
		return err
	}
	header(w, "Schema")
	fmt.Fprintln(w, s.Describe())
	return nil
}

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Prepare the demo and state databases",
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations to both databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			demo, err := db.Open(a.cfg.DemoDatabaseURL, false)
			if err != nil {
				return err
			}
			defer demo.Close()
			if err := db.Migrate(ctx, demo, db.SetDemo); err != nil {
				return err
			}
			success(a.out, "Migrated %s", a.cfg.DemoDatabaseURL)

			if _, err := a.stateDB(ctx); err != nil {
				return err
			}
			success(a.out, "Migrated %s", a.cfg.StateDatabaseURL)
			return nil
		},
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create the employees and departments demo data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := a.demoDB(cmd.Context())
			if err != nil {
				return err
			}
			n, err := db.Query(cmd.Context(), pool.Read, `SELECT COUNT(*) AS employees FROM employees`)
			if err != nil {
				return err
			}
			success(a.out, "Seeded %s (%v employees)", a.cfg.DemoDatabaseURL, n.Rows[0][0])
			return nil
		},
	}

	cmd.AddCommand(migrate, seed)
	return cmd
}
