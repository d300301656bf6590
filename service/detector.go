package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/apply-sla/model"
	"github.com/oks-citadel/apply-sla/pkg/logger"
)

// SweepResult summarizes one violation sweep.
type SweepResult struct {
	Skipped           bool      `json:"skipped"`
	Checked           int       `json:"checked"`
	ViolationsCreated int       `json:"violations_created"`
	RemediesIssued    int       `json:"remedies_issued"`
	RemediesExecuted  int       `json:"remedies_executed"`
	RemediesRedriven  int       `json:"remedies_redriven"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// ViolationDetector runs the scheduled sweep: it finds active contracts
// past their effective deadline with the guarantee unmet, records a
// violation with root-cause tags, issues remedies and auto-executes the
// ones that need no approval.
type ViolationDetector struct {
	store    *ContractStore
	policy   Policy
	calc     *RemedyCalculator
	executor *RemedyExecutor
	reports  *ReportArchive // optional
	lock     SweepLock
	now      func() time.Time
}

func NewViolationDetector(store *ContractStore, policy Policy, calc *RemedyCalculator, executor *RemedyExecutor, reports *ReportArchive, lock SweepLock) *ViolationDetector {
	if lock == nil {
		lock = NewLocalSweepLock()
	}
	return &ViolationDetector{
		store:    store,
		policy:   policy,
		calc:     calc,
		executor: executor,
		reports:  reports,
		lock:     lock,
		now:      time.Now,
	}
}

// shouldCheckForViolation gates violation creation: active, expired, and
// guarantee unmet.
func shouldCheckForViolation(c *model.SLAContract, now time.Time) bool {
	return c.Status == model.ContractActive && c.IsExpired(now) && !c.IsGuaranteeMet()
}

// RunSweep performs one sweep. The manual admin trigger and the scheduler
// both land here; the sweep lock keeps them from overlapping, and violation
// creation is idempotent regardless.
func (d *ViolationDetector) RunSweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{StartedAt: d.now()}

	release, acquired, err := d.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logger.Info(ctx, "sweep already running, skipping")
		result.Skipped = true
		result.FinishedAt = d.now()
		return result, nil
	}
	defer release()

	now := d.now()
	candidates := d.store.ExpiredActiveContracts(now)

	for _, c := range candidates {
		result.Checked++
		if !shouldCheckForViolation(c, now) {
			continue
		}

		violation, created := d.detect(ctx, c, now)
		if !created {
			continue
		}
		result.ViolationsCreated++

		issued, executed := d.issueRemedies(ctx, violation, c)
		result.RemediesIssued += issued
		result.RemediesExecuted += executed
	}

	// Re-drive approved remedies left pending by an earlier crash or by an
	// approval that arrived after the last sweep.
	for _, r := range d.store.ExecutableRemedies() {
		if err := d.executor.Execute(ctx, r.ID); err != nil {
			logger.Warn(ctx, "remedy re-drive failed", "remedy_id", r.ID, "error", err)
			continue
		}
		result.RemediesRedriven++
	}

	result.FinishedAt = d.now()
	logger.Info(ctx, "violation sweep finished",
		"checked", result.Checked,
		"violations_created", result.ViolationsCreated,
		"remedies_issued", result.RemediesIssued,
		"remedies_executed", result.RemediesExecuted,
		"remedies_redriven", result.RemediesRedriven,
	)
	return result, nil
}

// DetectForContract checks a single contract now, outside the sweep. Shares
// the idempotency guard with the sweep path.
func (d *ViolationDetector) DetectForContract(ctx context.Context, contractID string) (*model.SLAViolation, bool, error) {
	c, err := d.store.GetContract(contractID)
	if err != nil {
		return nil, false, err
	}
	now := d.now()
	if !shouldCheckForViolation(c, now) {
		return nil, false, nil
	}
	v, created := d.detect(ctx, c, now)
	if created {
		d.issueRemedies(ctx, v, c)
	}
	return v, created, nil
}

// detect builds and records the violation. Returns the stored violation
// and whether it was newly created; an existing unresolved violation is
// returned unchanged (idempotence).
func (d *ViolationDetector) detect(ctx context.Context, c *model.SLAContract, now time.Time) (*model.SLAViolation, bool) {
	factors, notes := classifyRootCauses(c, d.policy, now)

	violation := &model.SLAViolation{
		ID:                   uuid.New().String(),
		ContractID:           c.ID,
		UserID:               c.UserID,
		Type:                 model.ViolationGuaranteeNotMet,
		DetectedAt:           now,
		GuaranteedInterviews: c.GuaranteedInterviews,
		ActualInterviews:     c.Counters.InterviewsScheduled,
		Shortfall:            c.GuaranteedInterviews - c.Counters.InterviewsScheduled,
		DaysOverDeadline:     c.DaysOverDeadline(now),
		ApplicationsSent:     c.Counters.ApplicationsSent,
		ResponseRate:         c.ResponseRate(),
		InterviewRate:        c.InterviewRate(),
		RootCauses:           factors,
		AnalysisNotes:        notes,
	}

	stored, created := d.store.CreateViolation(violation)
	if !created {
		logger.Debug(ctx, "unresolved violation already recorded",
			"contract_id", c.ID,
			"violation_id", stored.ID,
		)
		return stored, false
	}

	logger.Warn(ctx, "violation detected",
		"violation_id", stored.ID,
		"contract_id", c.ID,
		"user_id", c.UserID,
		"shortfall", stored.Shortfall,
		"days_over_deadline", stored.DaysOverDeadline,
		"severity", stored.Severity(),
		"root_causes", stored.RootCauses.String(),
	)

	// The analysis report is best-effort; a storage outage never blocks the
	// sweep.
	if d.reports != nil {
		object, err := d.reports.UploadViolationReport(ctx, stored, c)
		if err != nil {
			logger.Warn(ctx, "failed to archive violation report", "violation_id", stored.ID, "error", err)
		} else {
			d.store.UpdateViolation(stored.ID, func(v *model.SLAViolation) error {
				v.ReportObject = object
				return nil
			})
		}
	}

	return stored, true
}

// issueRemedies materializes the calculator's recommendations as pending
// remedies and synchronously executes those that need no approval. A
// remedy is persisted pending before its execution starts, so a crash in
// between leaves it recoverable for the next sweep's re-drive pass.
func (d *ViolationDetector) issueRemedies(ctx context.Context, v *model.SLAViolation, c *model.SLAContract) (issued, executed int) {
	remedies := d.calc.BuildRemedies(v, c, d.now())
	for _, r := range remedies {
		d.store.CreateRemedy(r)
		issued++

		logger.Info(ctx, "remedy issued",
			"remedy_id", r.ID,
			"violation_id", v.ID,
			"type", string(r.Type),
			"requires_approval", r.RequiresApproval,
			"financial_impact", r.FinancialImpact,
		)

		if r.RequiresApproval {
			continue
		}
		if err := d.executor.Execute(ctx, r.ID); err != nil {
			// Execution failure is captured on the remedy itself and must
			// not abort sibling remedies.
			logger.Error(ctx, "remedy auto-execution failed", "remedy_id", r.ID, "error", err)
			continue
		}
		executed++
	}
	return issued, executed
}
