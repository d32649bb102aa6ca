package decision

import (
	"sort"

	"bank-approvals/pkg/condition"
)

// Engine evaluates decision tables against entity metadata. It is pure and
// stateless, so a single instance is shared by all workflow instances.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs the tables in declared order. The first table in which any
// rule matches decides the result, except COLLECT tables, whose outputs
// accumulate across tables until a non-COLLECT table matches.
// If nothing matches anywhere, the first table's fallback outputs apply.
func (e *Engine) Evaluate(tables []DecisionTable, metadata map[string]interface{}) map[string]interface{} {
	collected := map[string]interface{}{}
	anyCollected := false

	for _, table := range tables {
		outputs, matched := e.EvaluateTable(table, metadata)
		if !matched {
			continue
		}
		if table.HitPolicy == HitPolicyCollect {
			mergeCollect(collected, outputs, table.Outputs)
			anyCollected = true
			continue
		}
		for k, v := range outputs {
			collected[k] = v
		}
		return collected
	}

	if anyCollected {
		return collected
	}
	if len(tables) > 0 {
		return fallbackOutputs(tables[0])
	}
	return map[string]interface{}{}
}

// EvaluateTable applies the table's hit policy over its rules. The second
// return value reports whether any rule matched; when it is false the
// returned map is empty and the caller decides on fallbacks.
func (e *Engine) EvaluateTable(table DecisionTable, metadata map[string]interface{}) (map[string]interface{}, bool) {
	rules := table.Rules
	if table.HitPolicy == HitPolicyPriority {
		rules = make([]DecisionRule, len(table.Rules))
		copy(rules, table.Rules)
		sort.SliceStable(rules, func(i, j int) bool {
			return rules[i].Priority > rules[j].Priority
		})
	}

	result := map[string]interface{}{}
	matched := false

	for _, rule := range rules {
		if !ruleMatches(rule, metadata) {
			continue
		}
		matched = true

		switch table.HitPolicy {
		case HitPolicyAll:
			// Later matches overwrite earlier ones per output field.
			for k, v := range rule.Outputs {
				result[k] = v
			}
		case HitPolicyCollect:
			mergeCollect(result, rule.Outputs, table.Outputs)
		default: // FIRST and PRIORITY stop at the first match.
			for k, v := range rule.Outputs {
				result[k] = v
			}
			return result, true
		}
	}

	return result, matched
}

// ruleMatches requires every (field, condition) pair to pass. A metadata
// field that is absent evaluates against nil, which no numeric or string
// condition satisfies.
func ruleMatches(rule DecisionRule, metadata map[string]interface{}) bool {
	for field, expr := range rule.Conditions {
		if !condition.Evaluate(metadata[field], expr) {
			return false
		}
	}
	return true
}

// fallbackOutputs resolves the no-match case: the default rule's outputs
// if declared, else each output field's declared default.
func fallbackOutputs(table DecisionTable) map[string]interface{} {
	if table.DefaultRuleID != "" {
		for _, rule := range table.Rules {
			if rule.RuleID == table.DefaultRuleID {
				out := make(map[string]interface{}, len(rule.Outputs))
				for k, v := range rule.Outputs {
					out[k] = v
				}
				return out
			}
		}
	}

	out := map[string]interface{}{}
	for _, field := range table.Outputs {
		if field.Default != nil {
			out[field.Name] = field.Default
		}
	}
	return out
}

// mergeCollect merges outputs concatenating fields declared as lists instead
// of overwriting them.
func mergeCollect(dst, src map[string]interface{}, decls []FieldDecl) {
	listFields := map[string]bool{}
	for _, d := range decls {
		if d.Type == "list" {
			listFields[d.Name] = true
		}
	}

	for k, v := range src {
		if !listFields[k] {
			dst[k] = v
			continue
		}
		dst[k] = append(toList(dst[k]), toList(v)...)
	}
}

func toList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []interface{}{t}
	}
}
