package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ValidationError carries every problem found in an expression tree.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid filter expression: " + strings.Join(e.Messages, "; ")
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// ParseJSON decodes, validates and converts a JSON expression. Empty input yields a nil expression.
func ParseJSON(data []byte) (Expression, error) {
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		return nil, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode filter expression: %w", err)
	}
	return Parse(raw)
}

// Parse validates a decoded logical expression and converts it to its typed form.
func Parse(raw map[string]any) (Expression, error) {
	if raw == nil {
		return nil, nil
	}
	if errs := Validate(raw); len(errs) > 0 {
		return nil, &ValidationError{Messages: errs}
	}
	return convert(raw), nil
}

func convert(raw map[string]any) Expression {
	if raw["type"] == string(ExpressionTypeRelational) {
		left := raw["left"].(map[string]any)
		right := raw["right"].(map[string]any)
		not, _ := raw["not"].(bool)

		return &RelationalExpression{
			Op:    RelationalOp(raw["op"].(string)),
			Not:   not,
			Left:  RelationalLeft{Type: LeftType(left["type"].(string)), Value: left["value"].(string)},
			Right: RelationalRight{Type: RightType(right["type"].(string)), Value: right["value"].(string)},
		}
	}

	children := raw["children"].([]any)
	expr := &LogicalExpression{
		Op:       LogicalOp(raw["op"].(string)),
		Children: make([]Expression, 0, len(children)),
	}
	for _, child := range children {
		expr.Children = append(expr.Children, convert(child.(map[string]any)))
	}
	return expr
}
