package filters

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const maxExplainLength = 100

// References maps a left-hand reference type to the flattened object it resolves against.
// A nil entry means the reference object does not exist.
type References map[LeftType]map[string]string

var regexCache sync.Map

// GetArticleFilterResults evaluates expr against a flattened article. A nil expression always passes.
func GetArticleFilterResults(expr Expression, flattened map[string]string) Result {
	return Evaluate(expr, References{LeftArticle: flattened})
}

func Evaluate(expr Expression, refs References) Result {
	if expr == nil {
		return Result{Passed: true}
	}

	switch e := expr.(type) {
	case *LogicalExpression:
		if e == nil {
			return Result{Passed: true}
		}
		return evaluateLogical(e, refs)
	case *RelationalExpression:
		if e == nil {
			return Result{Passed: true}
		}
		return evaluateRelational(e, refs)
	default:
		panic(fmt.Sprintf("filters: unknown expression type %T", expr))
	}
}

func evaluateLogical(expr *LogicalExpression, refs References) Result {
	switch expr.Op {
	case OpAnd:
		if len(expr.Children) == 0 {
			return Result{Passed: true}
		}

		var matched []Explanation
		for _, child := range expr.Children {
			res := Evaluate(child, refs)
			if !res.Passed {
				return Result{Passed: false, ExplainBlocked: res.ExplainBlocked, ExplainMatched: matched}
			}
			matched = append(matched, res.ExplainMatched...)
		}
		return Result{Passed: true, ExplainMatched: matched}

	case OpOr:
		if refs[LeftArticle] == nil {
			return Result{
				Passed:         false,
				ExplainBlocked: []Explanation{{Message: "Reference value does not exist"}},
			}
		}
		if len(expr.Children) == 0 {
			return Result{Passed: true}
		}

		var blocked []Explanation
		for _, child := range expr.Children {
			res := Evaluate(child, refs)
			if res.Passed {
				return Result{Passed: true, ExplainMatched: res.ExplainMatched}
			}
			blocked = append(blocked, res.ExplainBlocked...)
		}
		return Result{Passed: false, ExplainBlocked: blocked}

	default:
		return Result{
			Passed:         false,
			ExplainBlocked: []Explanation{{Message: fmt.Sprintf("Unknown logical operator %q", expr.Op)}},
		}
	}
}

func evaluateRelational(expr *RelationalExpression, refs References) Result {
	object := refs[expr.Left.Type]
	if object == nil {
		return Result{
			Passed: false,
			ExplainBlocked: []Explanation{{
				Message:     "Reference value does not exist",
				FilterInput: expr.Right.Value,
			}},
		}
	}

	value := object[expr.Left.Value]

	var val bool
	var message string

	switch expr.Op {
	case OpEq:
		val = value == expr.Right.Value
		message = pick(val, "Reference value matches filter input", "Reference value does not match filter input")
	case OpContains:
		val = strings.Contains(strings.ToLower(value), strings.ToLower(expr.Right.Value))
		message = pick(val, "Reference value contains filter input", "Reference value does not contain filter input")
	case OpMatches:
		re, err := compileRegex(expr.Right.Value)
		if err != nil {
			message = fmt.Sprintf("Filter regex is invalid: %v", err)
		} else {
			val = re.MatchString(value)
			message = pick(val, "Reference value matches regex", "Reference value does not match regex")
		}
	default:
		message = fmt.Sprintf("Unknown relational operator %q", expr.Op)
	}

	if expr.Not {
		val = !val
	}

	explanation := Explanation{
		Message:        message,
		ReferenceValue: truncate(value),
		FilterInput:    expr.Right.Value,
	}

	if val {
		return Result{Passed: true, ExplainMatched: []Explanation{explanation}}
	}
	return Result{Passed: false, ExplainBlocked: []Explanation{explanation}}
}

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func truncate(value string) *string {
	runes := []rune(value)
	if len(runes) > maxExplainLength {
		value = string(runes[:maxExplainLength]) + "..."
	}
	return &value
}

func pick(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
