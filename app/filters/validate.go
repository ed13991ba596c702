package filters

import (
	"fmt"
	"strings"
)

// MaxDepth is the deepest nesting of logical expressions accepted by Validate.
const MaxDepth = 10

// Validate checks an untyped expression tree whose root must be a logical expression.
func Validate(input any) []string {
	return ValidateLogicalExpression(input, "root.", 0)
}

func ValidateLogicalExpression(input any, path string, depth int) []string {
	data, ok := input.(map[string]any)
	if !ok || data == nil {
		return []string{fmt.Sprintf("Expected %s to be an object but got %v", path, input)}
	}

	if depth >= MaxDepth {
		return []string{"Depth of logical expression is too deep."}
	}

	if data["type"] != string(ExpressionTypeLogical) {
		return []string{fmt.Sprintf("Expected %stype to be %s but got %v", path, ExpressionTypeLogical, data["type"])}
	}

	op, _ := data["op"].(string)
	if op != string(OpAnd) && op != string(OpOr) {
		return []string{fmt.Sprintf("Expected %sop to be one of %s,%s but got %v", path, OpAnd, OpOr, data["op"])}
	}

	children, ok := data["children"].([]any)
	if !ok {
		return []string{fmt.Sprintf("Expected %schildren to be an array but got %v", path, data["children"])}
	}

	var errs []string
	for i, child := range children {
		childPath := fmt.Sprintf("%schildren[%d].", path, i)

		childMap, _ := child.(map[string]any)
		switch childMap["type"] {
		case string(ExpressionTypeLogical):
			errs = append(errs, ValidateLogicalExpression(childMap, childPath, depth+1)...)
		case string(ExpressionTypeRelational):
			errs = append(errs, ValidateRelationalExpression(childMap, childPath)...)
		default:
			errs = append(errs, fmt.Sprintf("Expected %stype to be one of %s,%s but got %v",
				childPath, ExpressionTypeRelational, ExpressionTypeLogical, childMap["type"]))
		}
	}

	return errs
}

func ValidateRelationalExpression(input any, path string) []string {
	data, ok := input.(map[string]any)
	if !ok || data == nil {
		return []string{fmt.Sprintf("Expected %s to be an object but got %v", path, input)}
	}

	if data["type"] != string(ExpressionTypeRelational) {
		return []string{fmt.Sprintf("Expected %stype to be %s but got %v", path, ExpressionTypeRelational, data["type"])}
	}

	op, _ := data["op"].(string)
	switch RelationalOp(op) {
	case OpEq, OpContains, OpMatches:
	default:
		return []string{fmt.Sprintf("Expected %sop to be one of %s but got %v",
			path, strings.Join([]string{string(OpEq), string(OpContains), string(OpMatches)}, ","), data["op"])}
	}

	if not, exists := data["not"]; exists && not != nil {
		if _, ok := not.(bool); !ok {
			return []string{fmt.Sprintf("Expected %snot to be a boolean but got %v", path, not)}
		}
	}

	left, ok := data["left"].(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("Expected %sleft to be an object but got %v", path, data["left"])}
	}
	right, ok := data["right"].(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("Expected %sright to be an object but got %v", path, data["right"])}
	}

	errs := ValidateRelationalLeft(left, path+"left.")
	errs = append(errs, ValidateRelationalRight(right, path+"right.")...)

	if len(errs) == 0 && RelationalOp(op) == OpMatches {
		if _, err := compileRegex(right["value"].(string)); err != nil {
			errs = append(errs, fmt.Sprintf("Expected %svalue to be a valid regex but got error: %v", path+"right.", err))
		}
	}

	return errs
}

func ValidateRelationalLeft(left map[string]any, path string) []string {
	if left["type"] != string(LeftArticle) {
		return []string{fmt.Sprintf("Expected %stype to be one of %s but got %v", path, LeftArticle, left["type"])}
	}
	if _, ok := left["value"].(string); !ok {
		return []string{fmt.Sprintf("Expected %svalue to be a string but got %v", path, left["value"])}
	}
	return nil
}

func ValidateRelationalRight(right map[string]any, path string) []string {
	if right["type"] != string(RightString) {
		return []string{fmt.Sprintf("Expected %stype to be one of %s but got %v", path, RightString, right["type"])}
	}
	if _, ok := right["value"].(string); !ok {
		return []string{fmt.Sprintf("Expected %svalue to be a string but got %v", path, right["value"])}
	}
	return nil
}
