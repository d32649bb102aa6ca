package condition

import (
	"strconv"
	"strings"
)

// Evaluate tests a single metadata value against a condition expression.
// It never returns an error: unparsable conditions, nil values and type
// mismatches all evaluate to false so that a bad rule degrades to "no match"
// instead of crashing a workflow.
//
// Supported grammar (keywords are case-insensitive):
//
//	> n, < n, >= n, <= n, == n, != n      numeric comparison
//	> a && <= b                           range (logical AND of comparators)
//	== 'x', != 'x'                        string equality / inequality
//	x                                     bare token, case-insensitive match
//	a|b|c                                 set membership
//	contains 'x', startsWith 'x', endsWith 'x'
//	true / false                          boolean literal match
func Evaluate(value interface{}, expr string) bool {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(expr, "null") || value == nil {
		return false
	}

	// Range conditions: every AND-joined part must hold.
	if strings.Contains(expr, "&&") {
		for _, part := range strings.Split(expr, "&&") {
			if !Evaluate(value, part) {
				return false
			}
		}
		return true
	}

	switch {
	case strings.HasPrefix(expr, ">="):
		return compareNumeric(value, expr[2:], func(a, b float64) bool { return a >= b })
	case strings.HasPrefix(expr, "<="):
		return compareNumeric(value, expr[2:], func(a, b float64) bool { return a <= b })
	case strings.HasPrefix(expr, ">"):
		return compareNumeric(value, expr[1:], func(a, b float64) bool { return a > b })
	case strings.HasPrefix(expr, "<"):
		return compareNumeric(value, expr[1:], func(a, b float64) bool { return a < b })
	case strings.HasPrefix(expr, "=="):
		return equals(value, expr[2:])
	case strings.HasPrefix(expr, "!="):
		return !equals(value, expr[2:])
	}

	if arg, ok := keywordArg(expr, "contains"); ok {
		return strings.Contains(stringForm(value), arg)
	}
	if arg, ok := keywordArg(expr, "startswith"); ok {
		return strings.HasPrefix(stringForm(value), arg)
	}
	if arg, ok := keywordArg(expr, "endswith"); ok {
		return strings.HasSuffix(stringForm(value), arg)
	}

	// Set membership: value matches any of the |-joined tokens.
	if strings.Contains(expr, "|") {
		for _, token := range strings.Split(expr, "|") {
			if strings.EqualFold(stringForm(value), unquote(token)) {
				return true
			}
		}
		return false
	}

	// Bare token: case-insensitive exact match against the value's string
	// form. Boolean literals resolve through the same path.
	return strings.EqualFold(stringForm(value), unquote(expr))
}

// equals implements == / != operands, which may be a quoted string or a
// bare number.
func equals(value interface{}, operand string) bool {
	operand = strings.TrimSpace(operand)
	if isQuoted(operand) {
		return strings.EqualFold(stringForm(value), unquote(operand))
	}
	if target, err := strconv.ParseFloat(operand, 64); err == nil {
		v, ok := toFloat(value)
		return ok && v == target
	}
	return strings.EqualFold(stringForm(value), operand)
}

func compareNumeric(value interface{}, operand string, cmp func(a, b float64) bool) bool {
	target, err := strconv.ParseFloat(strings.TrimSpace(operand), 64)
	if err != nil {
		return false
	}
	v, ok := toFloat(value)
	if !ok {
		return false
	}
	return cmp(v, target)
}

// keywordArg matches "<keyword> 'arg'" with a case-insensitive keyword and
// returns the unquoted argument.
func keywordArg(expr, keyword string) (string, bool) {
	if len(expr) <= len(keyword) {
		return "", false
	}
	if !strings.EqualFold(expr[:len(keyword)], keyword) {
		return "", false
	}
	rest := expr[len(keyword):]
	if !strings.HasPrefix(rest, " ") && !strings.HasPrefix(rest, "\t") {
		return "", false
	}
	return unquote(rest), true
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\''
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

func stringForm(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
