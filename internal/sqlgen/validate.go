// Package sqlgen turns natural-language questions into SQLite queries through
// a forced function call, then checks and patches the result locally.
package sqlgen

import (
	"strings"
)

var requiredKeywords = []string{"SELECT", "FROM"}

// Validation is the outcome of Validate. Error holds the first failed check.
type Validation struct {
	Valid bool   `json:"is_valid"`
	Error string `json:"error_message,omitempty"`
}

// Validate runs three substring checks: required keywords, balanced
// parentheses and an even number of single quotes. It is not a parser and
// accepts queries that reference unknown tables or columns.
func Validate(query string) Validation {
	if strings.TrimSpace(query) == "" {
		return Validation{Error: "Empty query"}
	}

	upper := strings.ToUpper(query)
	for _, kw := range requiredKeywords {
		if !strings.Contains(upper, kw) {
			return Validation{Error: "Missing required keyword: " + kw}
		}
	}

	if strings.Count(query, "(") != strings.Count(query, ")") {
		return Validation{Error: "Unbalanced parentheses"}
	}

	if strings.Count(query, "'")%2 != 0 {
		return Validation{Error: "Unbalanced quotes"}
	}

	return Validation{Valid: true}
}

// Fix applies the single repair heuristic: prepend "SELECT * " when the error
// is a missing keyword and SELECT is absent, then make sure the query ends
// with exactly one semicolon.
func Fix(query, errMsg string) string {
	fixed := query

	if strings.Contains(strings.ToLower(errMsg), "missing required keyword") &&
		!strings.Contains(strings.ToUpper(fixed), "SELECT") {
		fixed = "SELECT * " + fixed
	}

	fixed = strings.TrimSuffix(fixed, ";")
	return fixed + ";"
}

// CleanSQL trims whitespace and strips a ```sql fence the model may wrap
// around the query.
func CleanSQL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
