package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bank-approvals/internal/config"
	"bank-approvals/internal/features/callback"
	"bank-approvals/internal/features/decision"
	"bank-approvals/internal/features/task"
	"bank-approvals/internal/features/template"
	"bank-approvals/internal/features/validator"
)

// Outbound event kinds, published after the terminal state is durably
// recorded.
const (
	EventWorkflowApproved  = "workflow.approved"
	EventWorkflowRejected  = "workflow.rejected"
	EventWorkflowCompleted = "workflow.completed"
	EventWorkflowReminder  = "workflow.reminder"
)

// AuditRecorder appends one row per state transition. Implemented by the
// audit feature; recording failures must never block a transition.
type AuditRecorder interface {
	RecordTransition(ctx context.Context, workflowID string, previous, next string, actor string, metadata map[string]interface{})
}

// EventPublisher emits terminal workflow events outward.
type EventPublisher interface {
	PublishWorkflowEvent(event string, subject *WorkflowSubject)
}

// TransitionBroadcaster feeds live state changes to connected operators.
type TransitionBroadcaster interface {
	BroadcastTransition(workflowID, entityType string, from, to WorkflowState)
}

type Orchestrator struct {
	cfg         *config.Config
	templates   template.TemplateService
	pipeline    *validator.Pipeline
	engine      *decision.Engine
	tasks       task.TaskService
	callbacks   *callback.Registry
	subjects    SubjectRepository
	runtime     *Runtime
	audit       AuditRecorder
	publisher   EventPublisher
	broadcaster TransitionBroadcaster
	logger      *zap.Logger
}

func NewOrchestrator(
	cfg *config.Config,
	templates template.TemplateService,
	pipeline *validator.Pipeline,
	engine *decision.Engine,
	tasks task.TaskService,
	callbacks *callback.Registry,
	subjects SubjectRepository,
	runtime *Runtime,
	audit AuditRecorder,
	publisher EventPublisher,
	broadcaster TransitionBroadcaster,
	logger *zap.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		templates:   templates,
		pipeline:    pipeline,
		engine:      engine,
		tasks:       tasks,
		callbacks:   callbacks,
		subjects:    subjects,
		runtime:     runtime,
		audit:       audit,
		publisher:   publisher,
		broadcaster: broadcaster,
		logger:      logger,
	}
	runtime.SetHandler(o.fold)
	return o
}

// Submit starts an approval workflow for an entity. Re-submission of the same
// entity collapses onto the existing instance (the unique index on the
// deterministic instance id is the idempotency guard), which makes inbound
// event redelivery safe.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*WorkflowSubject, error) {
	if req.EntityType == "" || req.EntityID == "" {
		return nil, errors.New("entityType and entityId are required")
	}

	tpl, err := o.resolveTemplate(ctx, req)
	if err != nil {
		return nil, err
	}

	metadata := req.EntityMetadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	subject := &WorkflowSubject{
		WorkflowID:     uuid.NewString(),
		InstanceID:     InstanceID(req.EntityType, req.EntityID),
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		TenantID:       req.TenantID,
		TemplateID:     tpl.TemplateID,
		EntityData:     req.EntityData,
		EntityMetadata: metadata,
		State:          StateInitiated,
		InitiatedBy:    req.InitiatedBy,
		Priority:       req.Priority,
	}

	// Claim the instance id before doing any work. The loser of a duplicate
	// submission gets the existing subject back, not an error.
	if err := o.subjects.Create(ctx, subject); err != nil {
		if errors.Is(err, ErrDuplicateInstance) {
			existing, lookupErr := o.subjects.GetByInstanceID(ctx, subject.InstanceID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			o.logger.Info("duplicate submission ignored",
				zap.String("instanceId", subject.InstanceID),
				zap.String("workflowId", existing.WorkflowID))
			return existing, nil
		}
		return nil, err
	}

	o.audit.RecordTransition(ctx, subject.WorkflowID, "", string(StateInitiated), req.InitiatedBy, map[string]interface{}{
		"entityType": req.EntityType,
		"entityId":   req.EntityID,
		"templateId": tpl.TemplateID,
	})
	o.runtime.Track(subject)

	if err := o.transition(ctx, subject, StateValidation, "system"); err != nil {
		return nil, err
	}

	outcome, err := o.pipeline.Run(ctx, validator.Input{
		EntityType: subject.EntityType,
		EntityID:   subject.EntityID,
		TenantID:   subject.TenantID,
		EntityData: subject.EntityData,
		Metadata:   subject.EntityMetadata,
	}, tpl.Validators)
	if err != nil {
		o.fail(ctx, subject, fmt.Sprintf("required validator failed: %v", err))
		return subject, nil
	}
	if outcome.RedFlag && outcome.Action == validator.ActionTerminateReject {
		subject.Result = &WorkflowResult{
			Outcome: string(StateRejected),
			Reason:  "red flag detected: " + outcome.Severity,
		}
		o.terminalize(ctx, subject, StateRejected, callback.EventOnReject, tpl.Callbacks.OnReject, "system")
		return subject, nil
	}

	outputs := o.engine.Evaluate(tpl.DecisionTables, subject.EntityMetadata)
	subject.Plan = decision.CompilePlan(outputs, tpl.EscalationRules, o.cfg.DefaultSLA)

	if !subject.Plan.ApprovalRequired {
		subject.Result = &WorkflowResult{
			Outcome:      "APPROVED",
			AutoApproved: true,
		}
		if err := o.transition(ctx, subject, StateApproved, "system"); err != nil {
			return nil, err
		}
		o.terminalize(ctx, subject, StateCompleted, callback.EventOnApprove, tpl.Callbacks.OnApprove, "system")
		return subject, nil
	}

	if _, err := o.tasks.CreateTasksForPlan(ctx, subject.WorkflowID, subject.Plan, time.Now()); err != nil {
		o.fail(ctx, subject, fmt.Sprintf("task creation failed: %v", err))
		return subject, nil
	}
	if err := o.transition(ctx, subject, StatePendingApproval, "system"); err != nil {
		return nil, err
	}
	return subject, nil
}

func (o *Orchestrator) resolveTemplate(ctx context.Context, req SubmitRequest) (*template.WorkflowTemplate, error) {
	if req.TemplateID != "" {
		tpl, err := o.templates.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, template.ErrTemplateNotFound
		}
		return tpl, nil
	}

	tpl, err := o.templates.GetActiveTemplate(ctx, req.EntityType)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrNoActiveTemplate
	}
	return tpl, nil
}

// Approve signals an approval decision into the workflow and waits for the
// fold's verdict.
func (o *Orchestrator) Approve(ctx context.Context, workflowID string, req DecisionRequest) error {
	return o.signalDecision(ctx, workflowID, &task.ApprovalDecision{
		ApproverID: req.ApproverID,
		Decision:   task.DecisionApprove,
		Comments:   req.Comments,
		Conditions: req.Conditions,
		Timestamp:  time.Now(),
	})
}

func (o *Orchestrator) Reject(ctx context.Context, workflowID string, req DecisionRequest) error {
	return o.signalDecision(ctx, workflowID, &task.ApprovalDecision{
		ApproverID:      req.ApproverID,
		Decision:        task.DecisionReject,
		Comments:        req.Comments,
		RequiredChanges: req.RequiredChanges,
		Timestamp:       time.Now(),
	})
}

func (o *Orchestrator) signalDecision(ctx context.Context, workflowID string, dec *task.ApprovalDecision) error {
	subject, err := o.lookup(ctx, workflowID)
	if err != nil {
		return err
	}
	return o.runtime.Signal(ctx, subject.InstanceID, &WorkflowSignal{
		Kind:     SignalDecision,
		Decision: dec,
		Actor:    dec.ApproverID,
	})
}

// Cancel short-circuits a non-terminal workflow. Approve/reject callbacks do
// not run on this path.
func (o *Orchestrator) Cancel(ctx context.Context, workflowID string, req CancelRequest) error {
	subject, err := o.lookup(ctx, workflowID)
	if err != nil {
		return err
	}
	return o.runtime.Signal(ctx, subject.InstanceID, &WorkflowSignal{
		Kind:   SignalCancel,
		Reason: req.Reason,
		Actor:  req.CancelledBy,
	})
}

// Status reads the running instance first and falls back to the persisted
// subject when the instance is not loaded in this process.
func (o *Orchestrator) Status(ctx context.Context, workflowID string) (*StatusResponse, error) {
	if live := o.runtime.LiveByWorkflowID(workflowID); live != nil {
		return &StatusResponse{
			WorkflowID: live.WorkflowID,
			State:      live.State,
			Plan:       live.Plan,
			Result:     live.Result,
			Live:       true,
		}, nil
	}

	subject, err := o.subjects.GetByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrWorkflowNotFound
	}
	return &StatusResponse{
		WorkflowID: subject.WorkflowID,
		State:      subject.State,
		Plan:       subject.Plan,
		Result:     subject.Result,
	}, nil
}

func (o *Orchestrator) lookup(ctx context.Context, workflowID string) (*WorkflowSubject, error) {
	if live := o.runtime.LiveByWorkflowID(workflowID); live != nil {
		return live, nil
	}
	subject, err := o.subjects.GetByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrWorkflowNotFound
	}
	return subject, nil
}

// fold applies one signal to a subject. Runs under the instance lock, so a
// subject only ever processes one signal at a time.
func (o *Orchestrator) fold(ctx context.Context, subject *WorkflowSubject, signal *WorkflowSignal) error {
	switch signal.Kind {
	case SignalDecision:
		return o.applyDecision(ctx, subject, signal)
	case SignalCancel:
		return o.applyCancel(ctx, subject, signal)
	case SignalTimeout:
		return o.applyTimeout(ctx, subject, signal)
	default:
		o.logger.Warn("unknown workflow signal",
			zap.String("kind", signal.Kind),
			zap.String("instanceId", signal.InstanceID))
		return nil
	}
}

func (o *Orchestrator) applyDecision(ctx context.Context, subject *WorkflowSubject, signal *WorkflowSignal) error {
	if subject.State != StatePendingApproval {
		return ErrNotPendingApproval
	}
	dec := signal.Decision
	if dec == nil {
		return errors.New("decision signal without a decision")
	}

	all, err := o.tasks.ListByWorkflow(ctx, subject.WorkflowID)
	if err != nil {
		return err
	}

	target := pickTask(all, subject.Plan, signal.TaskID, dec.ApproverID)
	if target == nil {
		return ErrAlreadyDecided
	}

	if _, err := o.tasks.Resolve(ctx, target.TaskID, task.TaskStatusCompleted, dec); err != nil {
		return err
	}

	tpl, _ := o.templates.GetTemplate(ctx, subject.TemplateID)
	handlers := template.CallbackHandlers{}
	if tpl != nil {
		handlers = tpl.Callbacks
	}

	if dec.Decision == task.DecisionReject {
		if err := o.tasks.CloseOpenByWorkflow(ctx, subject.WorkflowID, task.TaskStatusCancelled); err != nil {
			o.logger.Error("failed to close open tasks", zap.String("workflowId", subject.WorkflowID), zap.Error(err))
		}
		subject.Result = &WorkflowResult{
			Outcome:   "REJECTED",
			Reason:    dec.Comments,
			Decisions: o.collectDecisions(ctx, subject.WorkflowID),
		}
		o.terminalize(ctx, subject, StateRejected, callback.EventOnReject, handlers.OnReject, dec.ApproverID)
		return nil
	}

	// Approval: complete only once the plan's quorum of APPROVE decisions is
	// reached. In sequential mode gating already ensured order.
	all, err = o.tasks.ListByWorkflow(ctx, subject.WorkflowID)
	if err != nil {
		return err
	}
	approvals := 0
	for i := range all {
		t := all[i]
		if t.Status == task.TaskStatusCompleted && t.Decision != nil && t.Decision.Decision == task.DecisionApprove {
			approvals++
		}
	}
	if approvals < subject.Plan.RequiredApprovals {
		return nil
	}

	subject.Result = &WorkflowResult{
		Outcome:   "APPROVED",
		Decisions: o.collectDecisions(ctx, subject.WorkflowID),
	}
	if err := o.transition(ctx, subject, StateApproved, dec.ApproverID); err != nil {
		return err
	}
	o.terminalize(ctx, subject, StateCompleted, callback.EventOnApprove, handlers.OnApprove, dec.ApproverID)
	return nil
}

// pickTask selects the open, actionable task a decision applies to. An
// escalation signal names its task explicitly; a human decision matches by
// assignee when the task is user-assigned. An approver who already completed
// a task in this workflow gets no further slot: one person cannot fill a
// multi-approver quorum.
func pickTask(all []task.ApprovalTask, plan decision.ComputedApprovalPlan, taskID, approverID string) *task.ApprovalTask {
	if taskID == "" {
		for i := range all {
			t := all[i]
			if t.Status == task.TaskStatusCompleted && t.Decision != nil && t.Decision.ApproverID == approverID {
				return nil
			}
		}
	}
	for i := range all {
		t := all[i]
		if !t.Open() || !task.Actionable(t, plan, all) {
			continue
		}
		if taskID != "" {
			if t.TaskID == taskID {
				return &t
			}
			continue
		}
		if t.AssignedTo != "" && t.AssignedTo != approverID {
			continue
		}
		return &t
	}
	return nil
}

func (o *Orchestrator) applyCancel(ctx context.Context, subject *WorkflowSubject, signal *WorkflowSignal) error {
	if err := o.tasks.CloseOpenByWorkflow(ctx, subject.WorkflowID, task.TaskStatusCancelled); err != nil {
		o.logger.Error("failed to close open tasks", zap.String("workflowId", subject.WorkflowID), zap.Error(err))
	}
	subject.Result = &WorkflowResult{
		Outcome: "CANCELLED",
		Reason:  signal.Reason,
	}

	tpl, _ := o.templates.GetTemplate(ctx, subject.TemplateID)
	handler := ""
	if tpl != nil {
		handler = tpl.Callbacks.OnCancel
	}
	o.terminalize(ctx, subject, StateCancelled, callback.EventOnCancel, handler, signal.Actor)
	return nil
}

func (o *Orchestrator) applyTimeout(ctx context.Context, subject *WorkflowSubject, signal *WorkflowSignal) error {
	if subject.State != StatePendingApproval {
		return nil
	}
	if err := o.tasks.CloseOpenByWorkflow(ctx, subject.WorkflowID, task.TaskStatusTimeout); err != nil {
		o.logger.Error("failed to close open tasks", zap.String("workflowId", subject.WorkflowID), zap.Error(err))
	}
	subject.Result = &WorkflowResult{
		Outcome:   "TIMEOUT",
		Reason:    signal.Reason,
		Decisions: o.collectDecisions(ctx, subject.WorkflowID),
	}

	tpl, _ := o.templates.GetTemplate(ctx, subject.TemplateID)
	handler := ""
	if tpl != nil {
		handler = tpl.Callbacks.OnTimeout
	}
	o.terminalize(ctx, subject, StateTimeout, callback.EventOnTimeout, handler, "system")
	return nil
}

func (o *Orchestrator) collectDecisions(ctx context.Context, workflowID string) []task.ApprovalDecision {
	all, err := o.tasks.ListByWorkflow(ctx, workflowID)
	if err != nil {
		o.logger.Error("failed to collect decisions", zap.String("workflowId", workflowID), zap.Error(err))
		return nil
	}
	var decisions []task.ApprovalDecision
	for i := range all {
		if all[i].Decision != nil {
			decisions = append(decisions, *all[i].Decision)
		}
	}
	return decisions
}

// transition moves the subject to a non-terminal state and records it.
func (o *Orchestrator) transition(ctx context.Context, subject *WorkflowSubject, to WorkflowState, actor string) error {
	from := subject.State
	subject.State = to
	if err := o.subjects.Save(ctx, subject); err != nil {
		subject.State = from
		return err
	}
	o.audit.RecordTransition(ctx, subject.WorkflowID, string(from), string(to), actor, nil)
	o.broadcaster.BroadcastTransition(subject.WorkflowID, subject.EntityType, from, to)
	return nil
}

// terminalize performs a terminal transition in the required order: persist
// the state, dispatch the callback, emit outbound events, record the audit
// row. A callback failure moves the workflow to FAILED while the decision in
// Result stands.
func (o *Orchestrator) terminalize(ctx context.Context, subject *WorkflowSubject, to WorkflowState, event, handlerName, actor string) {
	from := subject.State
	subject.State = to
	if subject.Result != nil {
		subject.Result.CompletedAt = time.Now()
	}
	if err := o.subjects.Save(ctx, subject); err != nil {
		o.logger.Error("failed to persist terminal state",
			zap.String("workflowId", subject.WorkflowID),
			zap.String("state", string(to)),
			zap.Error(err))
		return
	}
	o.broadcaster.BroadcastTransition(subject.WorkflowID, subject.EntityType, from, to)

	// Cancellation skips approve/reject side effects; onCancel remains
	// opt-in through the registry.
	if event != "" {
		payload := callback.Payload{
			Event:       event,
			WorkflowID:  subject.WorkflowID,
			EntityType:  subject.EntityType,
			EntityID:    subject.EntityID,
			TenantID:    subject.TenantID,
			State:       string(to),
			HandlerName: handlerName,
			Metadata:    subject.EntityMetadata,
			Timestamp:   time.Now(),
		}
		if subject.Result != nil {
			payload.Decisions = subject.Result.Decisions
		}
		if err := o.callbacks.Dispatch(payload); err != nil {
			if subject.Result != nil {
				subject.Result.CallbackError = err.Error()
			}
			prev := subject.State
			subject.State = StateFailed
			if saveErr := o.subjects.Save(ctx, subject); saveErr != nil {
				o.logger.Error("failed to persist callback failure",
					zap.String("workflowId", subject.WorkflowID),
					zap.Error(saveErr))
			}
			o.audit.RecordTransition(ctx, subject.WorkflowID, string(from), string(prev), actor, nil)
			o.audit.RecordTransition(ctx, subject.WorkflowID, string(prev), string(StateFailed), "system", map[string]interface{}{
				"callbackError": err.Error(),
			})
			o.broadcaster.BroadcastTransition(subject.WorkflowID, subject.EntityType, prev, StateFailed)
			o.runtime.Retire(subject.InstanceID)
			return
		}
	}

	o.publishTerminal(subject, to)
	o.audit.RecordTransition(ctx, subject.WorkflowID, string(from), string(to), actor, nil)
	o.runtime.Retire(subject.InstanceID)
}

func (o *Orchestrator) publishTerminal(subject *WorkflowSubject, to WorkflowState) {
	switch to {
	case StateCompleted:
		if subject.Result != nil && subject.Result.Outcome == "APPROVED" {
			o.publisher.PublishWorkflowEvent(EventWorkflowApproved, subject)
		}
		o.publisher.PublishWorkflowEvent(EventWorkflowCompleted, subject)
	case StateRejected:
		o.publisher.PublishWorkflowEvent(EventWorkflowRejected, subject)
	}
}

// fail moves the subject to FAILED from any non-terminal state.
func (o *Orchestrator) fail(ctx context.Context, subject *WorkflowSubject, reason string) {
	subject.Result = &WorkflowResult{
		Outcome:     "FAILED",
		Reason:      reason,
		CompletedAt: time.Now(),
	}
	from := subject.State
	subject.State = StateFailed
	if err := o.subjects.Save(ctx, subject); err != nil {
		o.logger.Error("failed to persist failure",
			zap.String("workflowId", subject.WorkflowID),
			zap.Error(err))
	}
	o.audit.RecordTransition(ctx, subject.WorkflowID, string(from), string(StateFailed), "system", map[string]interface{}{
		"reason": reason,
	})
	o.broadcaster.BroadcastTransition(subject.WorkflowID, subject.EntityType, from, StateFailed)
	if err := o.tasks.CloseOpenByWorkflow(ctx, subject.WorkflowID, task.TaskStatusCancelled); err != nil {
		o.logger.Error("failed to close open tasks", zap.String("workflowId", subject.WorkflowID), zap.Error(err))
	}
	o.runtime.Retire(subject.InstanceID)
}

// EscalationSweep runs on the cron schedule. For every pending workflow it
// evaluates escalation rules against task age, fires matched actions exactly
// once per rule per task, and times out workflows whose SLA is exhausted with
// nothing left to escalate.
func (o *Orchestrator) EscalationSweep(ctx context.Context) {
	subjects, err := o.subjects.ListOpen(ctx)
	if err != nil {
		o.logger.Error("escalation sweep: failed to list open workflows", zap.Error(err))
		return
	}
	now := time.Now()

	for i := range subjects {
		subject := subjects[i]
		if subject.State != StatePendingApproval {
			continue
		}
		o.sweepWorkflow(ctx, &subject, now)
	}
}

func (o *Orchestrator) sweepWorkflow(ctx context.Context, subject *WorkflowSubject, now time.Time) {
	all, err := o.tasks.ListByWorkflow(ctx, subject.WorkflowID)
	if err != nil {
		o.logger.Error("escalation sweep: failed to list tasks",
			zap.String("workflowId", subject.WorkflowID), zap.Error(err))
		return
	}

	matches := task.MatchEscalations(all, subject.Plan.EscalationRules, subject.Plan.SLA, now)
	for _, m := range matches {
		fired, err := o.tasks.MarkEscalationFired(ctx, m.Task.TaskID, m.Rule.RuleID)
		if err != nil {
			o.logger.Error("escalation sweep: failed to mark rule fired",
				zap.String("taskId", m.Task.TaskID),
				zap.String("ruleId", m.Rule.RuleID),
				zap.Error(err))
			continue
		}
		if !fired {
			continue
		}
		o.fireEscalation(ctx, subject, m, now)
	}

	o.checkTimeout(ctx, subject, all, now)
}

func (o *Orchestrator) fireEscalation(ctx context.Context, subject *WorkflowSubject, m task.EscalationMatch, now time.Time) {
	o.logger.Info("escalation fired",
		zap.String("workflowId", subject.WorkflowID),
		zap.String("taskId", m.Task.TaskID),
		zap.String("ruleId", m.Rule.RuleID),
		zap.String("action", string(m.Rule.Action)))

	switch m.Rule.Action {
	case decision.EscalationSendReminder:
		// Delivery mechanics live outside this system; publishing the event
		// is the hook.
		o.publisher.PublishWorkflowEvent(EventWorkflowReminder, subject)
	case decision.EscalationEscalateToRole:
		if _, err := o.tasks.CreateEscalationTask(ctx, m.Task, m.Rule, now); err != nil {
			o.logger.Error("failed to create escalation task",
				zap.String("taskId", m.Task.TaskID), zap.Error(err))
		}
	case decision.EscalationAutoApprove, decision.EscalationAutoReject:
		verdict := task.DecisionApprove
		if m.Rule.Action == decision.EscalationAutoReject {
			verdict = task.DecisionReject
		}
		err := o.runtime.Signal(ctx, subject.InstanceID, &WorkflowSignal{
			Kind:   SignalDecision,
			TaskID: m.Task.TaskID,
			Actor:  "system:escalation:" + m.Rule.RuleID,
			Decision: &task.ApprovalDecision{
				ApproverID: "system:escalation:" + m.Rule.RuleID,
				Decision:   verdict,
				Comments:   "escalation rule " + m.Rule.RuleID,
				Timestamp:  now,
			},
		})
		if err != nil {
			// Losing the race to a human decision is expected here.
			o.logger.Info("escalation decision not applied",
				zap.String("workflowId", subject.WorkflowID),
				zap.String("ruleId", m.Rule.RuleID),
				zap.Error(err))
		}
	}
}

// checkTimeout moves a workflow to TIMEOUT once a task is past its due date
// and every escalation rule has already had its chance.
func (o *Orchestrator) checkTimeout(ctx context.Context, subject *WorkflowSubject, all []task.ApprovalTask, now time.Time) {
	for i := range all {
		t := all[i]
		if !t.Open() || !now.After(t.DueDate) {
			continue
		}
		if remainingRules(t, subject.Plan.EscalationRules) {
			continue
		}
		err := o.runtime.Signal(ctx, subject.InstanceID, &WorkflowSignal{
			Kind:   SignalTimeout,
			Reason: "SLA exceeded without resolution",
			Actor:  "system",
		})
		if err != nil && !errors.Is(err, ErrWorkflowTerminal) {
			o.logger.Error("failed to time out workflow",
				zap.String("workflowId", subject.WorkflowID), zap.Error(err))
		}
		return
	}
}

func remainingRules(t task.ApprovalTask, rules []decision.EscalationRule) bool {
	for _, r := range rules {
		fired := false
		for _, id := range t.EscalationsFired {
			if id == r.RuleID {
				fired = true
				break
			}
		}
		if !fired {
			return true
		}
	}
	return false
}
