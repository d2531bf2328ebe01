package cakemail

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Operator is a comparison operator of an atomic condition.
type Operator string

const (
	OpEqual        Operator = "="
	OpDoubleEqual  Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLike         Operator = "LIKE"
	OpNotLike      Operator = "NOT LIKE"
)

// floatEpsilon absorbs binary-fraction error when comparing floating-point fields.
const floatEpsilon = 1e-5

var (
	// `field` OP "literal"
	stringConditionRegex = regexp.MustCompile("^`([^`]*)`\\s*(==|=|!=|<=|>=|<|>|NOT\\s+LIKE|LIKE)\\s*\"(.*)\"$")
	// `field` OP 12.5
	numericConditionRegex = regexp.MustCompile("^`([^`]*)`\\s*(==|=|!=|<=|>=|<|>)\\s*([-+]?(?:\\d+(?:\\.\\d*)?|\\.\\d+))$")
)

// Condition is a parsed IF/ELSEIF condition.
type Condition interface {
	evaluate(ctx *renderContext) bool
	String() string
}

// AndCondition is true when every clause is true.
type AndCondition struct {
	Clauses []Condition
}

func (c *AndCondition) evaluate(ctx *renderContext) bool {
	for _, clause := range c.Clauses {
		if !clause.evaluate(ctx) {
			return false
		}
	}
	return true
}

func (c *AndCondition) String() string {
	return "And(" + joinConditions(c.Clauses) + ")"
}

// OrCondition is true when at least one clause is true.
type OrCondition struct {
	Clauses []Condition
}

func (c *OrCondition) evaluate(ctx *renderContext) bool {
	for _, clause := range c.Clauses {
		if clause.evaluate(ctx) {
			return true
		}
	}
	return false
}

func (c *OrCondition) String() string {
	return "Or(" + joinConditions(c.Clauses) + ")"
}

// Comparison is an atomic `field` OP operand condition. Quoted operands select
// the string grammar, bare numerals the numeric grammar.
type Comparison struct {
	Field    string
	Operator Operator
	Operand  string
	Numeric  bool
	like     *regexp.Regexp
}

func (c *Comparison) String() string {
	if c.Numeric {
		return fmt.Sprintf("Compare(%s %s %s)", c.Field, c.Operator, c.Operand)
	}
	return fmt.Sprintf("Compare(%s %s %q)", c.Field, c.Operator, c.Operand)
}

func (c *Comparison) evaluate(ctx *renderContext) bool {
	var result bool
	if c.Numeric {
		result = c.evaluateNumeric(ctx)
	} else {
		result = c.evaluateString(ctx)
	}
	ctx.logger.DebugCondition(c.String(), result)
	return result
}

// evaluateString compares the field's default text with the literal. The
// comparison is deliberately type-naive: an integer 9 is greater than "18".
func (c *Comparison) evaluateString(ctx *renderContext) bool {
	value, ok := ctx.data.lookup(c.Field)
	if !ok {
		// An absent field only equals the empty literal.
		switch c.Operator {
		case OpEqual, OpDoubleEqual:
			return c.Operand == ""
		default:
			return false
		}
	}

	text := value.text(ctx.culture)
	switch c.Operator {
	case OpEqual, OpDoubleEqual:
		return text == c.Operand
	case OpNotEqual:
		return text != c.Operand
	case OpLess:
		return text < c.Operand
	case OpLessEqual:
		return text <= c.Operand
	case OpGreater:
		return text > c.Operand
	case OpGreaterEqual:
		return text >= c.Operand
	case OpLike:
		return c.like != nil && c.like.MatchString(text)
	case OpNotLike:
		return c.like != nil && !c.like.MatchString(text)
	}
	return false
}

// evaluateNumeric compares in the field's stored numeric type. Absent fields,
// non-numeric fields and operands that do not convert are false.
func (c *Comparison) evaluateNumeric(ctx *renderContext) bool {
	value, ok := ctx.data.lookup(c.Field)
	if !ok {
		return false
	}

	switch value.kind {
	case KindInt16, KindInt32, KindInt64:
		operand, err := strconv.ParseInt(c.Operand, 10, value.intBits())
		if err != nil {
			ctx.logger.Debug("Operand %q does not convert to %s for field %q", c.Operand, value.kind, c.Field)
			return false
		}
		return compareOrdered(value.i, operand, c.Operator)
	case KindDecimal:
		operand, err := decimal.NewFromString(c.Operand)
		if err != nil {
			ctx.logger.Debug("Operand %q does not convert to decimal for field %q", c.Operand, c.Field)
			return false
		}
		return compareResult(value.dec.Cmp(operand), c.Operator)
	case KindFloat32:
		operand, err := strconv.ParseFloat(c.Operand, 32)
		if err != nil {
			return false
		}
		return compareFloat(value.f, float64(float32(operand)), c.Operator)
	case KindFloat64:
		operand, err := strconv.ParseFloat(c.Operand, 64)
		if err != nil {
			return false
		}
		return compareFloat(value.f, operand, c.Operator)
	}
	return false
}

func compareOrdered[T cmp.Ordered](a, b T, op Operator) bool {
	return compareResult(cmp.Compare(a, b), op)
}

func compareResult(r int, op Operator) bool {
	switch op {
	case OpEqual, OpDoubleEqual:
		return r == 0
	case OpNotEqual:
		return r != 0
	case OpLess:
		return r < 0
	case OpLessEqual:
		return r <= 0
	case OpGreater:
		return r > 0
	case OpGreaterEqual:
		return r >= 0
	}
	return false
}

// compareFloat treats values closer than floatEpsilon as equal, and orders
// values only when they are not equal in that sense.
func compareFloat(a, b float64, op Operator) bool {
	equal := math.Abs(a-b) < floatEpsilon
	switch op {
	case OpEqual, OpDoubleEqual:
		return equal
	case OpNotEqual:
		return !equal
	case OpLess:
		return a < b && !equal
	case OpLessEqual:
		return a < b || equal
	case OpGreater:
		return a > b && !equal
	case OpGreaterEqual:
		return a > b || equal
	}
	return false
}

// InvalidCondition matches neither comparison grammar and is always false.
type InvalidCondition struct {
	Raw string
}

func (c *InvalidCondition) evaluate(ctx *renderContext) bool {
	ctx.logger.Debug("Condition %q matches no comparison grammar, treating as false", c.Raw)
	return false
}

func (c *InvalidCondition) String() string {
	return fmt.Sprintf("Invalid(%q)", c.Raw)
}

// ParseCondition parses an IF/ELSEIF condition. The condition is split on
// " AND " first; each clause is parsed again, so a single clause is then split
// on " OR ". Separators inside quotes or backticks do not split.
func ParseCondition(condition string) Condition {
	condition = strings.TrimSpace(condition)

	if clauses := splitOutsideQuotes(condition, " AND "); len(clauses) > 1 {
		and := &AndCondition{}
		for _, clause := range clauses {
			and.Clauses = append(and.Clauses, ParseCondition(clause))
		}
		return and
	}

	if clauses := splitOutsideQuotes(condition, " OR "); len(clauses) > 1 {
		or := &OrCondition{}
		for _, clause := range clauses {
			or.Clauses = append(or.Clauses, ParseCondition(clause))
		}
		return or
	}

	return parseComparison(condition)
}

func parseComparison(condition string) Condition {
	if m := stringConditionRegex.FindStringSubmatch(condition); m != nil {
		cmp := &Comparison{
			Field:    strings.TrimSpace(m[1]),
			Operator: normalizeOperator(m[2]),
			Operand:  m[3],
		}
		if cmp.Operator == OpLike || cmp.Operator == OpNotLike {
			cmp.like = likePattern(cmp.Operand)
		}
		return cmp
	}
	if m := numericConditionRegex.FindStringSubmatch(condition); m != nil {
		return &Comparison{
			Field:    strings.TrimSpace(m[1]),
			Operator: normalizeOperator(m[2]),
			Operand:  m[3],
			Numeric:  true,
		}
	}
	return &InvalidCondition{Raw: condition}
}

func normalizeOperator(op string) Operator {
	if strings.HasPrefix(op, "NOT") {
		return OpNotLike
	}
	return Operator(op)
}

// likePattern translates a SQL LIKE literal into an unanchored regular
// expression where '%' matches any run of characters.
func likePattern(literal string) *regexp.Regexp {
	parts := strings.Split(literal, "%")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile(strings.Join(parts, ".*?"))
	if err != nil {
		return nil
	}
	return re
}

// splitOutsideQuotes splits s on sep, ignoring separators inside "..." or `...`.
func splitOutsideQuotes(s, sep string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '`':
			quote = ch
		case strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			i += len(sep) - 1
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func joinConditions(conds []Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

// walkComparisons calls fn for every atomic condition in c.
func walkComparisons(c Condition, fn func(Condition)) {
	switch n := c.(type) {
	case *AndCondition:
		for _, clause := range n.Clauses {
			walkComparisons(clause, fn)
		}
	case *OrCondition:
		for _, clause := range n.Clauses {
			walkComparisons(clause, fn)
		}
	default:
		fn(c)
	}
}
