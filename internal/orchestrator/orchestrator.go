// Package orchestrator exposes the engine's three sync entry points and wires
// the validator, allocator, eligibility resolver, and sync bus behind them.
// All three operations are repeat-safe.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"examcore/internal/allocator"
	"examcore/internal/eligibility"
	"examcore/internal/observe"
	"examcore/internal/syncbus"
	"examcore/internal/validator"
	"examcore/pkg/domain"
)

// Sync operation names used for metrics and tracing.
const (
	opSyncAcademic  = "sync_academic"
	opSyncResources = "sync_resources"
	opSyncStudents  = "sync_students"
)

// ErrExamNotFound marks a sync request for an exam the gateway does not know.
var ErrExamNotFound = errors.New("exam not found")

// Archiver persists finished sync records as documents. Optional.
type Archiver interface {
	ArchiveSyncRecord(ctx context.Context, examID, kind string, record any) error
}

// Orchestrator coordinates the engine components for one deployment.
type Orchestrator struct {
	gw        domain.Gateway
	validator *validator.Validator
	allocator *allocator.Allocator
	resolver  *eligibility.Resolver
	bus       *syncbus.Bus
	archiver  Archiver
	logger    observe.Logger
	metrics   observe.MetricsRecorder
	tracer    observe.Tracer
	rules     []domain.EnrollmentRule
	nowFn     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger installs a logger shared with the owned components.
func WithLogger(logger observe.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder for the sync operations.
func WithMetrics(metrics observe.MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithTracer installs a tracer for the sync operations.
func WithTracer(tracer observe.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithArchiver enables sync-record archiving.
func WithArchiver(archiver Archiver) Option {
	return func(o *Orchestrator) {
		o.archiver = archiver
	}
}

// WithEnrollmentRules installs the auto-enrollment rule list.
func WithEnrollmentRules(rules []domain.EnrollmentRule) Option {
	return func(o *Orchestrator) {
		o.rules = rules
	}
}

// New constructs an Orchestrator over the gateway and bus, building the
// validator, allocator, and eligibility resolver internally.
func New(gw domain.Gateway, bus *syncbus.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gw:      gw,
		bus:     bus,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		tracer:  observe.NopTracer(),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.validator = validator.New(gw, validator.WithLogger(o.logger))
	o.allocator = allocator.New(gw, allocator.WithLogger(o.logger))
	o.resolver = eligibility.New(gw,
		eligibility.WithLogger(o.logger),
		eligibility.WithEnrollmentRules(o.rules),
	)
	return o
}

// SyncExamWithAcademic validates the exam against the academic module's
// constraints and reports the violations found.
func (o *Orchestrator) SyncExamWithAcademic(ctx context.Context, examID string) (domain.ExamAcademicSync, error) {
	started := o.nowFn()
	ctx, span := o.tracer.Start(ctx, opSyncAcademic)
	record := domain.ExamAcademicSync{ExamID: examID, Status: domain.SyncError}

	exam, sessions, err := o.loadExam(ctx, examID)
	if err != nil {
		o.finish(ctx, opSyncAcademic, started, span, err)
		return record, err
	}

	record.Violations = o.validator.Validate(ctx, exam, sessions)
	record.Status = domain.SyncSynced
	if domain.HasCritical(record.Violations) {
		record.Status = domain.SyncConflict
	}
	record.SyncedAt = o.nowFn()

	o.publish(ctx, "academic_synced", record.ExamID, record)
	o.archive(ctx, examID, "academic", record)
	o.finish(ctx, opSyncAcademic, started, span, nil)
	return record, nil
}

// SyncExamWithResources allocates rooms, equipment, materials, and supervisors
// for every session of the exam.
func (o *Orchestrator) SyncExamWithResources(ctx context.Context, examID string) (domain.ExamResourceSync, error) {
	started := o.nowFn()
	ctx, span := o.tracer.Start(ctx, opSyncResources)
	record := domain.ExamResourceSync{ExamID: examID, Status: domain.SyncError}

	exam, sessions, err := o.loadExam(ctx, examID)
	if err != nil {
		o.finish(ctx, opSyncResources, started, span, err)
		return record, err
	}

	record.Requirements = allocator.DeriveRequirements(exam, o.countRegistered(ctx, examID))
	record.Allocations, record.Availability = o.allocator.Allocate(ctx, exam, sessions)
	record.Status = domain.SyncSynced
	for _, alloc := range record.Allocations {
		record.TotalCost += alloc.CostEstimate
		if len(alloc.Conflicts) > 0 {
			record.Status = domain.SyncConflict
		}
	}
	record.SyncedAt = o.nowFn()

	o.publish(ctx, "resources_synced", record.ExamID, record)
	o.archive(ctx, examID, "resources", record)
	o.finish(ctx, opSyncResources, started, span, nil)
	return record, nil
}

// SyncExamWithStudents resolves eligibility across the exam's program,
// auto-enrolls per the configured rules, and reports enrollment state.
func (o *Orchestrator) SyncExamWithStudents(ctx context.Context, examID string) (domain.ExamStudentSync, error) {
	started := o.nowFn()
	ctx, span := o.tracer.Start(ctx, opSyncStudents)
	record := domain.ExamStudentSync{ExamID: examID, Status: domain.SyncError}

	exam, _, err := o.loadExam(ctx, examID)
	if err != nil {
		o.finish(ctx, opSyncStudents, started, span, err)
		return record, err
	}

	eligible, ineligible, err := o.resolver.FindEligible(ctx, exam)
	if err != nil {
		err = fmt.Errorf("resolve eligibility: %w", err)
		o.finish(ctx, opSyncStudents, started, span, err)
		return record, err
	}
	if _, err := o.resolver.AutoEnroll(ctx, exam, eligible); err != nil {
		err = fmt.Errorf("auto-enroll: %w", err)
		o.finish(ctx, opSyncStudents, started, span, err)
		return record, err
	}

	registrations, err := o.gw.ListRegistrationsByExam(ctx, examID)
	if err != nil {
		err = fmt.Errorf("list registrations: %w", err)
		o.finish(ctx, opSyncStudents, started, span, err)
		return record, err
	}

	record.Accommodations = make(map[string][]string)
	for _, reg := range registrations {
		switch reg.Status {
		case domain.RegistrationRegistered:
			record.EnrolledStudents = append(record.EnrolledStudents, reg.StudentID)
		case domain.RegistrationPendingApproval:
			record.PendingApprovals = append(record.PendingApprovals, reg.StudentID)
		default:
			continue
		}
		if student, err := o.gw.GetStudent(ctx, reg.StudentID); err == nil && len(student.Accommodations) > 0 {
			record.Accommodations[reg.StudentID] = student.Accommodations
		}
	}
	for _, student := range eligible {
		record.EligibleStudents = append(record.EligibleStudents, student.ID)
	}
	record.IneligibleStudents = ineligible
	record.Stats = domain.EnrollmentStats{
		Enrolled:   len(record.EnrolledStudents),
		Eligible:   len(record.EligibleStudents),
		Pending:    len(record.PendingApprovals),
		Ineligible: len(record.IneligibleStudents),
	}
	record.Status = domain.SyncSynced
	record.SyncedAt = o.nowFn()

	o.publish(ctx, "students_synced", record.ExamID, record)
	o.archive(ctx, examID, "students", record)
	o.finish(ctx, opSyncStudents, started, span, nil)
	return record, nil
}

// Enroll manually registers one student for the exam after re-running the
// eligibility checks.
func (o *Orchestrator) Enroll(ctx context.Context, examID, studentID string) (domain.Registration, error) {
	exam, err := o.gw.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Registration{}, fmt.Errorf("%w: %s", ErrExamNotFound, examID)
		}
		return domain.Registration{}, fmt.Errorf("get exam %s: %w", examID, err)
	}
	return o.resolver.Enroll(ctx, exam, studentID)
}

func (o *Orchestrator) loadExam(ctx context.Context, examID string) (domain.Exam, []domain.ExamSession, error) {
	exam, err := o.gw.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Exam{}, nil, fmt.Errorf("%w: %s", ErrExamNotFound, examID)
		}
		return domain.Exam{}, nil, fmt.Errorf("get exam %s: %w", examID, err)
	}
	sessions, err := o.gw.ListSessionsByExam(ctx, examID)
	if err != nil {
		return domain.Exam{}, nil, fmt.Errorf("list sessions of %s: %w", examID, err)
	}
	return exam, sessions, nil
}

func (o *Orchestrator) countRegistered(ctx context.Context, examID string) int {
	registrations, err := o.gw.ListRegistrationsByExam(ctx, examID)
	if err != nil {
		return 0
	}
	count := 0
	for _, reg := range registrations {
		if reg.Status != domain.RegistrationCancelled {
			count++
		}
	}
	return count
}

func (o *Orchestrator) publish(ctx context.Context, action, examID string, record any) {
	if o.bus == nil {
		return
	}
	if _, err := o.bus.Publish(ctx, domain.ModuleExams, action, record); err != nil {
		o.logger.Warn("sync outcome publish failed", "exam", examID, "action", action, "error", err)
	}
}

func (o *Orchestrator) archive(ctx context.Context, examID, kind string, record any) {
	if o.archiver == nil {
		return
	}
	if err := o.archiver.ArchiveSyncRecord(ctx, examID, kind, record); err != nil {
		o.logger.Warn("sync record archive failed", "exam", examID, "kind", kind, "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, operation string, started time.Time, span observe.TraceSpan, err error) {
	o.metrics.Observe(ctx, operation, err == nil, o.nowFn().Sub(started))
	span.End(err)
	if err != nil {
		o.logger.Error("sync failed", "operation", operation, "error", err)
	}
}
