package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/casbin/govaluate"
)

const CalculateName = "calculate"

var ErrNotNumeric = errors.New("expression did not produce a number")

type CalculateInput struct {
	Expression string `json:"expression" jsonschema_description:"The mathematical expression to evaluate, e.g. '2 + 2 * 3'"`
}

func Calculator() Definition {
	return Definition{
		Name:        CalculateName,
		Description: "Perform mathematical calculations",
		Parameters:  GenerateSchema[CalculateInput](),
		Handler: func(_ context.Context, args json.RawMessage) (string, error) {
			in, err := decode[CalculateInput](args)
			if err != nil {
				return "", err
			}
			v, err := Evaluate(in.Expression)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		},
	}
}

// Evaluate computes an arithmetic expression. Only numeric results are
// accepted; "^" means exponentiation.
func Evaluate(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, errors.New("expression is required")
	}

	expr, err := govaluate.NewEvaluableExpression(strings.ReplaceAll(expression, "^", "**"))
	if err != nil {
		return 0, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	result, err := expr.Evaluate(nil)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate %q: %w", expression, err)
	}

	v, ok := result.(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, result)
	}
	return v, nil
}
