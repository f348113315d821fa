package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ValidateApprovalTransition checks an approval state change against
// the per-period state machine: pending may move to approved or
// rejected, and a rejected period may be resubmitted back to pending.
// Approved is terminal; nothing reverts it implicitly.
func ValidateApprovalTransition(current, target ApprovalStatus) error {
	if current == target {
		return nil
	}
	switch current {
	case ApprovalPending:
		if target == ApprovalApproved || target == ApprovalRejected {
			return nil
		}
	case ApprovalRejected:
		if target == ApprovalPending {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrApprovalTransition, current, target)
}

// ApprovalStore persists per-period approval state. It is mutated only
// through the workflow below; the aggregation engine reads it.
type ApprovalStore interface {
	ApprovalState(ctx context.Context, clientID uuid.UUID, periodLabel string) (*ApprovalState, error)
	SaveApprovalState(ctx context.Context, state ApprovalState) error
}

// ApprovalWorkflow is the client-facing surface that transitions the
// hour-approval state machine. It is deliberately separate from the
// engine: aggregation never blocks on, nor changes, approval state.
type ApprovalWorkflow struct {
	store  ApprovalStore
	logger *slog.Logger
	now    func() time.Time
}

// NewApprovalWorkflow constructs the workflow.
func NewApprovalWorkflow(store ApprovalStore, logger *slog.Logger) *ApprovalWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalWorkflow{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (w *ApprovalWorkflow) WithClock(clock func() time.Time) *ApprovalWorkflow {
	if clock != nil {
		w.now = clock
	}
	return w
}

// State returns the current approval state, defaulting to pending when
// no record exists for the period yet.
func (w *ApprovalWorkflow) State(ctx context.Context, clientID uuid.UUID, periodLabel string) (ApprovalState, error) {
	state, err := w.store.ApprovalState(ctx, clientID, periodLabel)
	if err != nil {
		return ApprovalState{}, err
	}
	if state == nil {
		return ApprovalState{ClientID: clientID, PeriodLabel: periodLabel, Status: ApprovalPending}, nil
	}
	return *state, nil
}

// Approve marks the period's hours as accepted by the client.
func (w *ApprovalWorkflow) Approve(ctx context.Context, clientID uuid.UUID, periodLabel string) (ApprovalState, error) {
	return w.transition(ctx, clientID, periodLabel, ApprovalApproved, "", "")
}

// Reject records the client's objection with an optional reason and
// supporting evidence reference.
func (w *ApprovalWorkflow) Reject(ctx context.Context, clientID uuid.UUID, periodLabel, reason, evidence string) (ApprovalState, error) {
	return w.transition(ctx, clientID, periodLabel, ApprovalRejected, reason, evidence)
}

// Resubmit moves a rejected period back to pending for re-review.
func (w *ApprovalWorkflow) Resubmit(ctx context.Context, clientID uuid.UUID, periodLabel string) (ApprovalState, error) {
	return w.transition(ctx, clientID, periodLabel, ApprovalPending, "", "")
}

func (w *ApprovalWorkflow) transition(ctx context.Context, clientID uuid.UUID, periodLabel string, target ApprovalStatus, reason, evidence string) (ApprovalState, error) {
	current, err := w.State(ctx, clientID, periodLabel)
	if err != nil {
		return ApprovalState{}, err
	}
	if err := ValidateApprovalTransition(current.Status, target); err != nil {
		return ApprovalState{}, err
	}
	next := ApprovalState{
		ClientID:    clientID,
		PeriodLabel: periodLabel,
		Status:      target,
		Reason:      reason,
		Evidence:    evidence,
		UpdatedAt:   w.now().UTC(),
	}
	if err := w.store.SaveApprovalState(ctx, next); err != nil {
		return ApprovalState{}, err
	}
	w.logger.InfoContext(ctx, "approval state changed",
		slog.String("client_id", clientID.String()),
		slog.String("period", periodLabel),
		slog.String("from", string(current.Status)),
		slog.String("to", string(target)))
	return next, nil
}
