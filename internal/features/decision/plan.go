package decision

import (
	"time"
)

// Output field names recognised by the plan compiler.
const (
	OutputApprovalRequired  = "approvalRequired"
	OutputApproverRoles     = "approverRoles"
	OutputApprovalCount     = "approvalCount"
	OutputSequential        = "isSequential"
	OutputSLAHours          = "slaHours"
	OutputSpecificApprovers = "specificApprovers"
)

// CompilePlan maps raw decision-table outputs into a ComputedApprovalPlan.
// With no decision tables configured the plan falls back to a conservative
// default (one approval required) rather than silently skipping approval.
func CompilePlan(outputs map[string]interface{}, escalations []EscalationRule, defaultSLA time.Duration) ComputedApprovalPlan {
	plan := ComputedApprovalPlan{
		ApprovalRequired:  true,
		RequiredApprovals: 1,
		SLA:               defaultSLA,
		EscalationRules:   escalations,
	}

	if len(outputs) == 0 {
		return plan
	}

	if v, ok := outputs[OutputApprovalRequired]; ok {
		plan.ApprovalRequired = asBool(v)
	}

	plan.ApproverRoles = asStringList(outputs[OutputApproverRoles])
	plan.SpecificApprovers = asStringList(outputs[OutputSpecificApprovers])
	plan.Sequential = asBool(outputs[OutputSequential])

	if n, ok := asInt(outputs[OutputApprovalCount]); ok && n > 0 {
		plan.RequiredApprovals = n
	} else if len(plan.ApproverRoles) > 0 {
		plan.RequiredApprovals = len(plan.ApproverRoles)
	}

	if hours, ok := asFloat(outputs[OutputSLAHours]); ok && hours > 0 {
		plan.SLA = time.Duration(hours * float64(time.Hour))
	}

	if !plan.ApprovalRequired {
		plan.RequiredApprovals = 0
		plan.ApproverRoles = nil
		plan.SpecificApprovers = nil
	}

	// Remaining outputs travel with the plan so callbacks and validators can
	// read custom fields the tables produced.
	extra := map[string]interface{}{}
	for k, v := range outputs {
		switch k {
		case OutputApprovalRequired, OutputApproverRoles, OutputApprovalCount,
			OutputSequential, OutputSLAHours, OutputSpecificApprovers:
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		plan.AdditionalConfig = extra
	}

	return plan
}

func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "TRUE" || t == "True"
	default:
		return false
	}
}

func asInt(v interface{}) (int, bool) {
	f, ok := asFloat(v)
	return int(f), ok
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func asStringList(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
