package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/PauloHFS/llm-bootcamp/internal/logging"
)

type Employee struct {
	ID         int
	Name       string
	Position   string
	Salary     int
	HireDate   string
	Department string
}

type Department struct {
	ID       int
	Name     string
	Budget   int
	Location string
}

var Employees = []Employee{
	{1, "Alice Johnson", "Data Scientist", 120000, "2022-03-15", "Engineering"},
	{2, "Bob Smith", "Software Engineer", 100000, "2021-06-01", "Engineering"},
	{3, "Charlie Brown", "Product Manager", 95000, "2023-01-20", "Product"},
	{4, "Diana Prince", "UX Designer", 85000, "2022-08-10", "Design"},
	{5, "Eve Wilson", "Data Engineer", 110000, "2021-12-05", "Engineering"},
	{6, "Frank Miller", "Marketing Manager", 90000, "2023-02-14", "Marketing"},
}

var Departments = []Department{
	{1, "Engineering", 500000, "Floor 3"},
	{2, "Product", 300000, "Floor 2"},
	{3, "Design", 200000, "Floor 1"},
	{4, "Marketing", 250000, "Floor 4"},
}

// Seed writes the demo fixture. Rows are replaced by id, so running it again
// leaves the tables unchanged.
func Seed(ctx context.Context, dbConn *sql.DB) error {
	tx, err := dbConn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, e := range Employees {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO employees (id, name, position, salary, hire_date, department) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, e.Position, e.Salary, e.HireDate, e.Department,
		)
		if err != nil {
			return fmt.Errorf("failed to seed employee %d: %w", e.ID, err)
		}
	}

	for _, d := range Departments {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO departments (id, name, budget, location) VALUES (?, ?, ?, ?)`,
			d.ID, d.Name, d.Budget, d.Location,
		)
		if err != nil {
			return fmt.Errorf("failed to seed department %d: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	logging.Get().Info("database seeded successfully",
		slog.Int("employees", len(Employees)),
		slog.Int("departments", len(Departments)),
	)
	return nil
}
