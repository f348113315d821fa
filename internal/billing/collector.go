package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the narrow read interface the engine consumes. The pgx
// implementation lives in repository.go; tests substitute in-memory
// fakes.
type Store interface {
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	ListActiveClients(ctx context.Context) ([]Client, error)
	CasesForClient(ctx context.Context, clientID uuid.UUID) ([]CaseRecord, error)
	TimeEntriesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]TimeEntry, error)
	TimeEntriesForCases(ctx context.Context, caseIDs []uuid.UUID, from, to time.Time) ([]TimeEntry, error)
	ExpensesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]Expense, error)
	ServiceChargesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]ServiceCharge, error)
	InstallmentsForClient(ctx context.Context, clientID uuid.UUID) ([]Installment, error)
	GroupForPrincipal(ctx context.Context, clientID uuid.UUID) (*CompanyGroup, error)
	GroupMembers(ctx context.Context, groupID uuid.UUID) ([]Client, error)
	ApprovalState(ctx context.Context, clientID uuid.UUID, periodLabel string) (*ApprovalState, error)
}

// Collect fetches the four billable categories for one client and
// period. Orphaned references degrade to empty slices with a warning,
// because historical data is known to carry them; genuine store
// failures wrap ErrDataAccess and abort only this client.
func (s *Service) Collect(ctx context.Context, client Client, period Period) (Collected, error) {
	var items Collected

	entries, err := s.timeEntries(ctx, client, period)
	if err != nil {
		return Collected{}, err
	}
	items.TimeEntries = entries

	items.Expenses, err = degradable(ctx, s.logger, client.ID, "expenses", func() ([]Expense, error) {
		return s.store.ExpensesForClient(ctx, client.ID, period.Start, period.End)
	})
	if err != nil {
		return Collected{}, err
	}

	items.ServiceCharges, err = degradable(ctx, s.logger, client.ID, "service charges", func() ([]ServiceCharge, error) {
		return s.store.ServiceChargesForClient(ctx, client.ID, period.Start, period.End)
	})
	if err != nil {
		return Collected{}, err
	}

	// Installments are perpetual: billed every period until cancelled,
	// so they are never bounded by the period range.
	installments, err := degradable(ctx, s.logger, client.ID, "installments", func() ([]Installment, error) {
		return s.store.InstallmentsForClient(ctx, client.ID)
	})
	if err != nil {
		return Collected{}, err
	}
	for _, inst := range installments {
		if inst.Tag != TagMonthly || inst.Status == InstallmentCancelled {
			continue
		}
		items.Installments = append(items.Installments, inst)
	}

	return items, nil
}

// timeEntries resolves the linkage difference between client kinds:
// individuals link entries directly, corporates link through cases.
func (s *Service) timeEntries(ctx context.Context, client Client, period Period) ([]TimeEntry, error) {
	if client.Kind != ClientCorporate {
		return degradable(ctx, s.logger, client.ID, "time entries", func() ([]TimeEntry, error) {
			return s.store.TimeEntriesForClient(ctx, client.ID, period.Start, period.End)
		})
	}
	cases, err := degradable(ctx, s.logger, client.ID, "cases", func() ([]CaseRecord, error) {
		return s.store.CasesForClient(ctx, client.ID)
	})
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, nil
	}
	caseIDs := make([]uuid.UUID, len(cases))
	for i, c := range cases {
		caseIDs[i] = c.ID
	}
	return degradable(ctx, s.logger, client.ID, "time entries", func() ([]TimeEntry, error) {
		return s.store.TimeEntriesForCases(ctx, caseIDs, period.Start, period.End)
	})
}

// degradable runs a sub-resource fetch, mapping ErrNotFound to an
// empty result and anything else to a client-scoped ErrDataAccess.
func degradable[T any](ctx context.Context, logger *slog.Logger, clientID uuid.UUID, what string, fetch func() ([]T, error)) ([]T, error) {
	rows, err := fetch()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, "missing sub-resource, treating as empty",
				slog.String("client_id", clientID.String()), slog.String("resource", what))
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s for client %s: %v", ErrDataAccess, what, clientID, err)
	}
	return rows, nil
}
