package orchestrator

import (
	"context"
	"errors"
	"sync"

	"examcore/internal/observe"
	"examcore/internal/syncbus"
	"examcore/pkg/domain"
)

// ChangeNotification is one typed entity-change message from an integrated
// module. The dispatcher maps it to the sync entry point owned by the module.
type ChangeNotification struct {
	Module domain.Module
	Action string
	ExamID string
}

// Dispatcher consumes change notifications from a channel and drives the
// orchestrator's entry points. It exists so module integrations subscribe
// explicitly instead of calling sync operations ad hoc.
type Dispatcher struct {
	orc    *Orchestrator
	ch     chan ChangeNotification
	logger observe.Logger
	policy syncbus.RetryPolicy

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewDispatcher constructs a Dispatcher with the given channel buffer.
func NewDispatcher(orc *Orchestrator, buffer int, logger observe.Logger) *Dispatcher {
	if buffer < 0 {
		buffer = 0
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Dispatcher{
		orc:    orc,
		ch:     make(chan ChangeNotification, buffer),
		logger: logger,
		policy: syncbus.DefaultRetryPolicy(),
		done:   make(chan struct{}),
	}
}

// SetRetryPolicy replaces the retry policy applied to change-driven syncs.
// Call before Start.
func (d *Dispatcher) SetRetryPolicy(policy syncbus.RetryPolicy) {
	d.policy = policy
}

// Notify queues a change notification. It reports false when the dispatcher
// has stopped or the queue is full; senders decide whether to drop or retry.
func (d *Dispatcher) Notify(n ChangeNotification) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.ch <- n:
		return true
	default:
		d.logger.Warn("change notification dropped, queue full", "module", string(n.Module), "exam", n.ExamID)
		return false
	}
}

// Start runs the dispatch loop until Stop is called or the context ends.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

// Stop ends the dispatch loop. Queued notifications are discarded.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case n := <-d.ch:
			d.handle(ctx, n)
		}
	}
}

// handle maps one notification to the sync operations its source module
// affects. A change in the exams module itself refreshes all three views.
// Failed syncs are retried per the dispatcher's policy; an unknown exam is
// permanent, retrying cannot make it appear.
func (d *Dispatcher) handle(ctx context.Context, n ChangeNotification) {
	run := func(name string, fn func(context.Context, string) error) {
		var permanent error
		err := d.policy.Do(ctx, func(ctx context.Context) error {
			err := fn(ctx, n.ExamID)
			if errors.Is(err, ErrExamNotFound) {
				permanent = err
				return nil
			}
			return err
		})
		if permanent != nil {
			err = permanent
		}
		if err != nil {
			d.logger.Error("change-driven sync failed", "operation", name, "exam", n.ExamID, "module", string(n.Module), "error", err)
		}
	}
	academic := func(ctx context.Context, examID string) error {
		_, err := d.orc.SyncExamWithAcademic(ctx, examID)
		return err
	}
	resources := func(ctx context.Context, examID string) error {
		_, err := d.orc.SyncExamWithResources(ctx, examID)
		return err
	}
	students := func(ctx context.Context, examID string) error {
		_, err := d.orc.SyncExamWithStudents(ctx, examID)
		return err
	}

	switch n.Module {
	case domain.ModuleAcademic:
		run(opSyncAcademic, academic)
	case domain.ModuleResources:
		run(opSyncResources, resources)
	case domain.ModuleStudents:
		run(opSyncStudents, students)
	case domain.ModuleExams:
		run(opSyncAcademic, academic)
		run(opSyncResources, resources)
		run(opSyncStudents, students)
	default:
		d.logger.Debug("change notification ignored", "module", string(n.Module), "action", n.Action)
	}
}
