package workflow

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler folds one signal into a subject, persisting whatever it changes.
type Handler func(ctx context.Context, subject *WorkflowSubject, signal *WorkflowSignal) error

type instance struct {
	mu      sync.Mutex
	subject *WorkflowSubject
}

// Runtime gives every workflow subject single-threaded signal processing.
// A signal is appended to the durable log first, then folded into the subject
// under the instance lock; instances run fully in parallel with each other.
// Unapplied log entries are replayed on process start so a crash between
// append and fold loses nothing.
type Runtime struct {
	mu        sync.Mutex
	instances map[string]*instance
	handler   Handler
	subjects  SubjectRepository
	signals   SignalRepository
	logger    *zap.Logger
}

func NewRuntime(subjects SubjectRepository, signals SignalRepository, logger *zap.Logger) *Runtime {
	return &Runtime{
		instances: map[string]*instance{},
		subjects:  subjects,
		signals:   signals,
		logger:    logger,
	}
}

// SetHandler wires the orchestrator's fold function. Must be called before
// any signal is delivered.
func (r *Runtime) SetHandler(h Handler) {
	r.handler = h
}

// Track registers a freshly created subject as a running instance.
func (r *Runtime) Track(subject *WorkflowSubject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[subject.InstanceID] = &instance{subject: subject}
}

// Live returns the in-memory subject snapshot for a running instance, or nil
// when the instance is not loaded in this process.
func (r *Runtime) Live(instanceID string) *WorkflowSubject {
	r.mu.Lock()
	inst, ok := r.instances[instanceID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	cp := *inst.subject
	return &cp
}

// LiveByWorkflowID scans running instances for a workflow id. Instances are
// few enough per process that a scan beats a second index.
func (r *Runtime) LiveByWorkflowID(workflowID string) *WorkflowSubject {
	r.mu.Lock()
	var found *instance
	for _, inst := range r.instances {
		if inst.subject.WorkflowID == workflowID {
			found = inst
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return nil
	}

	found.mu.Lock()
	defer found.mu.Unlock()
	cp := *found.subject
	return &cp
}

func (r *Runtime) instanceFor(ctx context.Context, instanceID string) (*instance, error) {
	r.mu.Lock()
	if inst, ok := r.instances[instanceID]; ok {
		r.mu.Unlock()
		return inst, nil
	}
	r.mu.Unlock()

	// Not in memory; rehydrate from the persisted subject.
	subject, err := r.subjects.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		return nil, ErrWorkflowNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[instanceID]; ok {
		return inst, nil
	}
	inst := &instance{subject: subject}
	r.instances[instanceID] = inst
	return inst, nil
}

// Signal durably appends the signal and folds it into the instance. The call
// is synchronous: the caller gets the fold's verdict (e.g. ALREADY_DECIDED)
// even though processing is serialized.
func (r *Runtime) Signal(ctx context.Context, instanceID string, signal *WorkflowSignal) error {
	inst, err := r.instanceFor(ctx, instanceID)
	if err != nil {
		return err
	}

	signal.InstanceID = instanceID
	if err := r.signals.Append(ctx, signal); err != nil {
		return err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	return r.apply(ctx, inst, signal)
}

// apply runs under the instance lock. The signal is marked applied whether
// the fold accepted it or not; a business rejection consumes the signal.
func (r *Runtime) apply(ctx context.Context, inst *instance, signal *WorkflowSignal) error {
	var foldErr error
	if inst.subject.State.Terminal() {
		foldErr = ErrWorkflowTerminal
	} else {
		foldErr = r.handler(ctx, inst.subject, signal)
	}

	if err := r.signals.MarkApplied(ctx, signal); err != nil {
		r.logger.Error("failed to mark signal applied",
			zap.String("instanceId", signal.InstanceID),
			zap.String("kind", signal.Kind),
			zap.Error(err))
	}

	if inst.subject.State.Terminal() {
		r.retire(inst.subject.InstanceID)
	}
	return foldErr
}

// Retire unloads an instance. Called when a subject reaches a terminal state
// outside the signal path (e.g. auto-approval during submit).
func (r *Runtime) Retire(instanceID string) {
	r.retire(instanceID)
}

func (r *Runtime) retire(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, instanceID)
}

// Resume reloads open subjects after a restart and replays any signals that
// were appended but never folded.
func (r *Runtime) Resume(ctx context.Context) error {
	subjects, err := r.subjects.ListOpen(ctx)
	if err != nil {
		return err
	}

	for i := range subjects {
		subject := subjects[i]
		r.Track(&subject)

		pending, err := r.signals.ListUnapplied(ctx, subject.InstanceID)
		if err != nil {
			r.logger.Error("failed to load unapplied signals",
				zap.String("instanceId", subject.InstanceID),
				zap.Error(err))
			continue
		}

		inst, err := r.instanceFor(ctx, subject.InstanceID)
		if err != nil {
			continue
		}
		for j := range pending {
			signal := pending[j]
			inst.mu.Lock()
			if err := r.apply(ctx, inst, &signal); err != nil {
				r.logger.Warn("replayed signal rejected",
					zap.String("instanceId", subject.InstanceID),
					zap.String("kind", signal.Kind),
					zap.Error(err))
			}
			inst.mu.Unlock()
		}
	}

	r.logger.Info("workflow runtime resumed", zap.Int("instances", len(subjects)))
	return nil
}
