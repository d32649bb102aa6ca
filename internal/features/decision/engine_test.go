package decision

import (
	"reflect"
	"testing"
)

func TestHitPolicyFirst(t *testing.T) {
	table := DecisionTable{
		HitPolicy: HitPolicyFirst,
		Rules: []DecisionRule{
			{RuleID: "r1", Conditions: map[string]string{"amount": "> 1000000"}, Outputs: map[string]interface{}{"tier": "high"}},
			{RuleID: "r2", Conditions: map[string]string{"amount": "> 10"}, Outputs: map[string]interface{}{"tier": "low"}},
		},
	}

	engine := NewEngine()

	out, matched := engine.EvaluateTable(table, map[string]interface{}{"amount": 500.0})
	if !matched || out["tier"] != "low" {
		t.Errorf("expected later rule to win when earlier does not match, got %v", out)
	}

	out, matched = engine.EvaluateTable(table, map[string]interface{}{"amount": 2000000.0})
	if !matched || out["tier"] != "high" {
		t.Errorf("expected first matching rule to win, got %v", out)
	}
}

func TestHitPolicyPriority(t *testing.T) {
	// Supplied in ascending priority order; priority 100 must be evaluated
	// first and win.
	table := DecisionTable{
		HitPolicy: HitPolicyPriority,
		Rules: []DecisionRule{
			{RuleID: "low", Priority: 50, Outputs: map[string]interface{}{"winner": "low"}},
			{RuleID: "high", Priority: 100, Outputs: map[string]interface{}{"winner": "high"}},
		},
	}

	out, matched := NewEngine().EvaluateTable(table, map[string]interface{}{})
	if !matched || out["winner"] != "high" {
		t.Errorf("priority 100 rule should win, got %v", out)
	}
}

func TestHitPolicyPriorityStableTies(t *testing.T) {
	table := DecisionTable{
		HitPolicy: HitPolicyPriority,
		Rules: []DecisionRule{
			{RuleID: "a", Priority: 10, Outputs: map[string]interface{}{"winner": "a"}},
			{RuleID: "b", Priority: 10, Outputs: map[string]interface{}{"winner": "b"}},
		},
	}

	out, _ := NewEngine().EvaluateTable(table, nil)
	if out["winner"] != "a" {
		t.Errorf("declaration order must break priority ties, got %v", out["winner"])
	}
}

func TestHitPolicyAll(t *testing.T) {
	table := DecisionTable{
		HitPolicy: HitPolicyAll,
		Rules: []DecisionRule{
			{RuleID: "r1", Outputs: map[string]interface{}{"a": 1, "b": 1}},
			{RuleID: "r2", Outputs: map[string]interface{}{"b": 2, "c": 3}},
		},
	}

	out, matched := NewEngine().EvaluateTable(table, nil)
	if !matched {
		t.Fatal("expected a match")
	}
	// Last match wins per key, non-overlapping keys accumulate.
	if out["a"] != 1 || out["b"] != 2 || out["c"] != 3 {
		t.Errorf("unexpected ALL merge: %v", out)
	}
}

func TestHitPolicyCollect(t *testing.T) {
	table := DecisionTable{
		HitPolicy: HitPolicyCollect,
		Outputs: []FieldDecl{
			{Name: "approverRoles", Type: "list"},
			{Name: "slaHours", Type: "number"},
		},
		Rules: []DecisionRule{
			{RuleID: "r1", Outputs: map[string]interface{}{"approverRoles": []interface{}{"PRODUCT_MANAGER"}, "slaHours": 24}},
			{RuleID: "r2", Outputs: map[string]interface{}{"approverRoles": []interface{}{"RISK_MANAGER"}, "slaHours": 48}},
		},
	}

	out, _ := NewEngine().EvaluateTable(table, nil)

	roles := out["approverRoles"].([]interface{})
	want := []interface{}{"PRODUCT_MANAGER", "RISK_MANAGER"}
	if !reflect.DeepEqual(roles, want) {
		t.Errorf("COLLECT should concatenate list outputs, got %v", roles)
	}
	if out["slaHours"] != 48 {
		t.Errorf("scalar outputs still overwrite under COLLECT, got %v", out["slaHours"])
	}
}

func TestNoMatchFallsBackToDefaultRule(t *testing.T) {
	table := DecisionTable{
		HitPolicy:     HitPolicyFirst,
		DefaultRuleID: "fallback",
		Rules: []DecisionRule{
			{RuleID: "r1", Conditions: map[string]string{"x": "> 100"}, Outputs: map[string]interface{}{"tier": "big"}},
			{RuleID: "fallback", Conditions: map[string]string{"x": "< 0"}, Outputs: map[string]interface{}{"tier": "default"}},
		},
	}

	out := NewEngine().Evaluate([]DecisionTable{table}, map[string]interface{}{"x": 5.0})
	// x=5 matches neither rule; FIRST would normally pick fallback only via
	// default-rule resolution.
	if out["tier"] != "default" {
		t.Errorf("expected default rule outputs, got %v", out)
	}
}

func TestNoMatchFallsBackToDeclaredDefaults(t *testing.T) {
	table := DecisionTable{
		HitPolicy: HitPolicyFirst,
		Outputs: []FieldDecl{
			{Name: "approvalRequired", Type: "boolean", Default: true},
			{Name: "unset", Type: "string"},
		},
		Rules: []DecisionRule{
			{RuleID: "r1", Conditions: map[string]string{"x": "> 100"}, Outputs: map[string]interface{}{"approvalRequired": false}},
		},
	}

	out := NewEngine().Evaluate([]DecisionTable{table}, map[string]interface{}{})
	if out["approvalRequired"] != true {
		t.Errorf("expected declared default, got %v", out["approvalRequired"])
	}
	if _, ok := out["unset"]; ok {
		t.Error("fields without defaults must be absent")
	}
}

func TestMissingMetadataFieldFailsCondition(t *testing.T) {
	// An absent field evaluates against nil, identical to an explicit null.
	rule := DecisionRule{Conditions: map[string]string{"pricingVariance": "> 10"}}

	if ruleMatches(rule, map[string]interface{}{}) {
		t.Error("absent field must fail a numeric condition")
	}
	if ruleMatches(rule, map[string]interface{}{"pricingVariance": nil}) {
		t.Error("explicit null must fail a numeric condition")
	}
	if !ruleMatches(rule, map[string]interface{}{"pricingVariance": 15.0}) {
		t.Error("present field should pass")
	}
}

func TestTablesEvaluatedInDeclaredOrder(t *testing.T) {
	tables := []DecisionTable{
		{
			HitPolicy: HitPolicyFirst,
			Rules:     []DecisionRule{{RuleID: "never", Conditions: map[string]string{"x": "> 100"}, Outputs: map[string]interface{}{"from": "t1"}}},
		},
		{
			HitPolicy: HitPolicyFirst,
			Rules:     []DecisionRule{{RuleID: "always", Outputs: map[string]interface{}{"from": "t2"}}},
		},
	}

	out := NewEngine().Evaluate(tables, map[string]interface{}{"x": 1.0})
	if out["from"] != "t2" {
		t.Errorf("first table with a match should win, got %v", out)
	}
}
