package filters

import (
	"strings"
	"testing"
)

func rel(op RelationalOp, field, value string, not bool) *RelationalExpression {
	return &RelationalExpression{
		Op:    op,
		Not:   not,
		Left:  RelationalLeft{Type: LeftArticle, Value: field},
		Right: RelationalRight{Type: RightString, Value: value},
	}
}

func TestEvaluate_NilExpressionPasses(t *testing.T) {
	result := GetArticleFilterResults(nil, map[string]string{"title": "x"})
	if !result.Passed {
		t.Errorf("Expected nil expression to pass")
	}
}

func TestEvaluate_Relational(t *testing.T) {
	article := map[string]string{"title": "Breaking News Today", "empty": ""}

	tests := []struct {
		name     string
		expr     *RelationalExpression
		expected bool
	}{
		{"eq exact", rel(OpEq, "title", "Breaking News Today", false), true},
		{"eq case differs", rel(OpEq, "title", "breaking news today", false), false},
		{"contains ignores case", rel(OpContains, "title", "NEWS", false), true},
		{"contains missing", rel(OpContains, "title", "sports", false), false},
		{"matches regex", rel(OpMatches, "title", "^breaking", false), true},
		{"matches regex no match", rel(OpMatches, "title", "today$x", false), false},
		{"invalid regex fails", rel(OpMatches, "title", "(", false), false},
		{"missing field is empty", rel(OpEq, "author", "", false), true},
		{"not inverts eq", rel(OpEq, "title", "Breaking News Today", true), false},
		{"not inverts contains", rel(OpContains, "title", "sports", true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetArticleFilterResults(tt.expr, article)
			if result.Passed != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result.Passed)
			}
		})
	}
}

func TestEvaluate_NotEqOnMatchingValue(t *testing.T) {
	result := GetArticleFilterResults(rel(OpEq, "title", "s", true), map[string]string{"title": "s"})
	if result.Passed {
		t.Errorf("Expected NOT(EQ) over equal value to be false")
	}
	if len(result.ExplainBlocked) != 1 {
		t.Errorf("Expected 1 blocked explanation, got %d", len(result.ExplainBlocked))
	}
}

func TestEvaluate_OrOverMissingReference(t *testing.T) {
	expr := &LogicalExpression{Op: OpOr, Children: []Expression{rel(OpEq, "title", "a", false)}}

	result := GetArticleFilterResults(expr, nil)
	if result.Passed {
		t.Errorf("Expected OR over missing reference to be false")
	}

	result = GetArticleFilterResults(&LogicalExpression{Op: OpOr}, nil)
	if result.Passed {
		t.Errorf("Expected empty OR over missing reference to be false")
	}
}

func TestEvaluate_RelationalMissingReference(t *testing.T) {
	result := Evaluate(rel(OpEq, "title", "a", false), References{})
	if result.Passed {
		t.Errorf("Expected false when reference does not exist")
	}
	if len(result.ExplainBlocked) != 1 || result.ExplainBlocked[0].Message != "Reference value does not exist" {
		t.Errorf("Unexpected explanation: %+v", result.ExplainBlocked)
	}
	if result.ExplainBlocked[0].ReferenceValue != nil {
		t.Errorf("Expected nil reference value")
	}
}

func TestEvaluate_Logical(t *testing.T) {
	article := map[string]string{"title": "Go 1.24 released", "category": "golang"}

	tests := []struct {
		name     string
		expr     *LogicalExpression
		expected bool
	}{
		{"empty and", &LogicalExpression{Op: OpAnd}, true},
		{"empty or", &LogicalExpression{Op: OpOr}, true},
		{"and all pass", &LogicalExpression{Op: OpAnd, Children: []Expression{
			rel(OpContains, "title", "go", false),
			rel(OpEq, "category", "golang", false),
		}}, true},
		{"and one fails", &LogicalExpression{Op: OpAnd, Children: []Expression{
			rel(OpContains, "title", "go", false),
			rel(OpEq, "category", "rust", false),
		}}, false},
		{"or one passes", &LogicalExpression{Op: OpOr, Children: []Expression{
			rel(OpEq, "category", "rust", false),
			rel(OpEq, "category", "golang", false),
		}}, true},
		{"or none pass", &LogicalExpression{Op: OpOr, Children: []Expression{
			rel(OpEq, "category", "rust", false),
			rel(OpEq, "category", "zig", false),
		}}, false},
		{"nested", &LogicalExpression{Op: OpAnd, Children: []Expression{
			&LogicalExpression{Op: OpOr, Children: []Expression{
				rel(OpEq, "category", "rust", false),
				rel(OpMatches, "title", `\d+\.\d+`, false),
			}},
			rel(OpContains, "title", "beta", true),
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetArticleFilterResults(tt.expr, article)
			if result.Passed != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result.Passed)
			}
		})
	}
}

func TestEvaluate_Explanations(t *testing.T) {
	article := map[string]string{"title": "hello", "body": strings.Repeat("a", 150)}

	orExpr := &LogicalExpression{Op: OpOr, Children: []Expression{
		rel(OpEq, "title", "nope", false),
		rel(OpContains, "body", "zzz", false),
	}}
	result := GetArticleFilterResults(orExpr, article)
	if len(result.ExplainBlocked) != 2 {
		t.Fatalf("Expected 2 blocked explanations, got %d", len(result.ExplainBlocked))
	}
	if got := *result.ExplainBlocked[1].ReferenceValue; len(got) != maxExplainLength+3 {
		t.Errorf("Expected truncated reference value, got length %d", len(got))
	}

	andExpr := &LogicalExpression{Op: OpAnd, Children: []Expression{
		rel(OpEq, "title", "hello", false),
		rel(OpContains, "title", "xyz", true),
	}}
	result = GetArticleFilterResults(andExpr, article)
	if !result.Passed {
		t.Fatalf("Expected AND to pass")
	}
	if len(result.ExplainMatched) != 2 {
		t.Errorf("Expected 2 matched explanations, got %d", len(result.ExplainMatched))
	}
	if len(result.ExplainBlocked) != 0 {
		t.Errorf("Expected no blocked explanations, got %d", len(result.ExplainBlocked))
	}
}
