package filters

type ExpressionType string

const (
	ExpressionTypeRelational ExpressionType = "RELATIONAL"
	ExpressionTypeLogical    ExpressionType = "LOGICAL"
)

type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

type RelationalOp string

const (
	OpEq       RelationalOp = "EQ"
	OpContains RelationalOp = "CONTAINS"
	OpMatches  RelationalOp = "MATCHES"
)

type LeftType string

const LeftArticle LeftType = "ARTICLE"

type RightType string

const RightString RightType = "STRING"

// Expression is either a *LogicalExpression or a *RelationalExpression.
type Expression interface {
	expressionType() ExpressionType
}

type LogicalExpression struct {
	Op       LogicalOp
	Children []Expression
}

func (*LogicalExpression) expressionType() ExpressionType { return ExpressionTypeLogical }

type RelationalLeft struct {
	Type  LeftType
	Value string
}

type RelationalRight struct {
	Type  RightType
	Value string
}

type RelationalExpression struct {
	Op    RelationalOp
	Not   bool
	Left  RelationalLeft
	Right RelationalRight
}

func (*RelationalExpression) expressionType() ExpressionType { return ExpressionTypeRelational }

// Explanation describes one relational comparison made while evaluating.
type Explanation struct {
	Message        string  `json:"message"`
	ReferenceValue *string `json:"referenceValue"`
	FilterInput    string  `json:"filterInput"`
}

type Result struct {
	Passed         bool          `json:"result"`
	ExplainBlocked []Explanation `json:"explainBlocked"`
	ExplainMatched []Explanation `json:"explainMatched"`
}
