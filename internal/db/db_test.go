package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestDB(t *testing.T) *DualPool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "example.db")

	pool, err := NewDualPool(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })

	ctx := context.Background()
	if err := Migrate(ctx, pool.Write, SetDemo); err != nil {
		t.Fatal(err)
	}
	if err := Seed(ctx, pool.Write); err != nil {
		t.Fatal(err)
	}
	return pool
}

func TestSeedIsIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	if err := Seed(ctx, pool.Write); err != nil {
		t.Fatal(err)
	}

	rs, err := Query(ctx, pool.Read, "SELECT COUNT(*) AS n FROM employees")
	if err != nil {
		t.Fatal(err)
	}
	if got := rs.Rows[0][0]; got != int64(6) {
		t.Errorf("expected 6 employees, got %v", got)
	}

	rs, err = Query(ctx, pool.Read, "SELECT COUNT(*) AS n FROM departments")
	if err != nil {
		t.Fatal(err)
	}
	if got := rs.Rows[0][0]; got != int64(4) {
		t.Errorf("expected 4 departments, got %v", got)
	}
}

func TestSalaryThreshold(t *testing.T) {
	pool := setupTestDB(t)

	rs, err := Query(context.Background(), pool.Read, "SELECT name FROM employees WHERE salary > 100000 ORDER BY id")
	if err != nil {
		t.Fatal(err)
	}

	names := rs.Column("name")
	if len(names) != 2 || names[0] != "Alice Johnson" || names[1] != "Eve Wilson" {
		t.Errorf("unexpected rows: %v", names)
	}
}

func TestReadPoolRejectsWrites(t *testing.T) {
	pool := setupTestDB(t)

	_, err := pool.Read.ExecContext(context.Background(), "DELETE FROM employees")
	if err == nil {
		t.Fatal("expected write on read-only pool to fail")
	}
}

func TestMigrateBothSetsOnOneFile(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, pool.Write, SetState); err != nil {
		t.Fatal(err)
	}
	// rerunning is a no-op
	if err := Migrate(ctx, pool.Write, SetDemo); err != nil {
		t.Fatal(err)
	}

	if err := Migrate(ctx, pool.Write, "nope"); err == nil {
		t.Error("expected error for unknown migration set")
	}
}

func TestIntrospect(t *testing.T) {
	pool := setupTestDB(t)

	schema, err := Introspect(context.Background(), pool.Read)
	if err != nil {
		t.Fatal(err)
	}

	if len(schema.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %+v", schema.Tables)
	}

	want := "Table 'employees': id, name, position, salary, hire_date, department\n" +
		"Table 'departments': id, name, budget, location"
	if got := schema.Describe(); got != want {
		t.Errorf("Describe mismatch\n got: %q\nwant: %q", got, want)
	}

	if _, ok := schema.Table("EMPLOYEES"); !ok {
		t.Error("table lookup should be case-insensitive")
	}
}

func TestResultSetRender(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"name", "salary"},
		Rows: [][]any{
			{"Alice Johnson", int64(120000)},
			{"Eve Wilson", nil},
		},
	}

	out := rs.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "name") || !strings.Contains(lines[0], "salary") {
		t.Errorf("bad header %q", lines[0])
	}
	if !strings.Contains(lines[3], "NULL") {
		t.Errorf("nil should render as NULL: %q", lines[3])
	}

	maps := rs.Maps()
	if maps[0]["name"] != "Alice Johnson" {
		t.Errorf("unexpected map row %v", maps[0])
	}
}

func TestPaging(t *testing.T) {
	p := PagingParams{Page: 0, PerPage: 0}
	if p.Offset() != 0 || p.Limit() != 10 {
		t.Errorf("defaults: offset=%d limit=%d", p.Offset(), p.Limit())
	}

	res := NewPagedResult([]int{1, 2}, 12, PagingParams{Page: 1, PerPage: 5})
	if res.TotalPages() != 3 || !res.HasNext() {
		t.Errorf("unexpected paging %+v", res)
	}

	last := NewPagedResult([]int{11, 12}, 12, PagingParams{Page: 3, PerPage: 5})
	if last.HasNext() {
		t.Error("last page should not have next")
	}
}

func TestPagingClampsAndFooter(t *testing.T) {
	p := PagingParams{Page: 2, PerPage: 500}
	if p.Limit() != MaxPerPage || p.Offset() != MaxPerPage {
		t.Errorf("clamp: offset=%d limit=%d", p.Offset(), p.Limit())
	}

	empty := NewPagedResult[string](nil, 0, PagingParams{})
	if got, want := empty.Footer("conversations"), "page 1 of 1 (0 conversations)"; got != want {
		t.Errorf("Footer() = %q, want %q", got, want)
	}
	if empty.HasNext() {
		t.Error("empty result should not have next")
	}

	mid := NewPagedResult([]int{6, 7}, 12, PagingParams{Page: 2, PerPage: 5})
	if got, want := mid.Footer("rows"), "page 2 of 3 (12 rows)"; got != want {
		t.Errorf("Footer() = %q, want %q", got, want)
	}
}
