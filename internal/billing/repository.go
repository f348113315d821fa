package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bufete-erp/bufete-erp/internal/platform/db"
)

// Repository is the pgx-backed implementation of Store and
// ApprovalStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a billing repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, tax_id, kind, hourly_rate, tax_rate, billing_active, approval_required`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.TaxID, &c.Kind, &c.HourlyRate, &c.TaxRate, &c.BillingActive, &c.ApprovalRequired); err != nil {
		return Client{}, err
	}
	return c, nil
}

// GetClient fetches one client row.
func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("billing: get client: %w", err)
	}
	return c, nil
}

// ListActiveClients returns every client with billing enabled.
func (r *Repository) ListActiveClients(ctx context.Context) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients WHERE billing_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("billing: list active clients: %w", err)
	}
	defer rows.Close()
	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("billing: scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// CasesForClient returns the client's case records.
func (r *Repository) CasesForClient(ctx context.Context, clientID uuid.UUID) ([]CaseRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_id, name, COALESCE(file_number, '')
FROM case_records WHERE client_id = $1 ORDER BY name`, clientID)
	if err != nil {
		return nil, fmt.Errorf("billing: cases for client: %w", err)
	}
	defer rows.Close()
	var cases []CaseRecord
	for rows.Next() {
		var c CaseRecord
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Name, &c.FileNumber); err != nil {
			return nil, fmt.Errorf("billing: scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

const timeEntryColumns = `id, client_id, case_id, entry_date, COALESCE(duration, ''), COALESCE(title, '')`

func scanTimeEntries(rows pgx.Rows) ([]TimeEntry, error) {
	defer rows.Close()
	var entries []TimeEntry
	for rows.Next() {
		var e TimeEntry
		if err := rows.Scan(&e.ID, &e.ClientID, &e.CaseID, &e.Date, &e.Duration, &e.Title); err != nil {
			return nil, fmt.Errorf("billing: scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TimeEntriesForClient fetches entries linked directly to a client,
// bounded to the period's inclusive date range.
func (r *Repository) TimeEntriesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]TimeEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+timeEntryColumns+`
FROM time_entries WHERE client_id = $1 AND entry_date BETWEEN $2 AND $3 ORDER BY entry_date`, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("billing: time entries for client: %w", err)
	}
	return scanTimeEntries(rows)
}

// TimeEntriesForCases fetches entries linked through a case set.
func (r *Repository) TimeEntriesForCases(ctx context.Context, caseIDs []uuid.UUID, from, to time.Time) ([]TimeEntry, error) {
	if len(caseIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(caseIDs))
	for i, id := range caseIDs {
		ids[i] = id.String()
	}
	rows, err := r.pool.Query(ctx, `SELECT `+timeEntryColumns+`
FROM time_entries WHERE case_id = ANY($1::uuid[]) AND entry_date BETWEEN $2 AND $3 ORDER BY entry_date`, ids, from, to)
	if err != nil {
		return nil, fmt.Errorf("billing: time entries for cases: %w", err)
	}
	return scanTimeEntries(rows)
}

// ExpensesForClient fetches expenses in the period range. Cancelled
// rows are returned and filtered during aggregation so the single
// exclusion rule lives in one place.
func (r *Repository) ExpensesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_id, expense_date, COALESCE(description, ''), amount, status, COALESCE(tag, '')
FROM expenses WHERE client_id = $1 AND expense_date BETWEEN $2 AND $3 ORDER BY expense_date`, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("billing: expenses for client: %w", err)
	}
	defer rows.Close()
	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Date, &e.Description, &e.Amount, &e.Status, &e.Tag); err != nil {
			return nil, fmt.Errorf("billing: scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// ServiceChargesForClient fetches non-cancelled service charges in the
// period range.
func (r *Repository) ServiceChargesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]ServiceCharge, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_id, case_id, charge_date, COALESCE(description, ''), cost, expenses, tax, total, status, COALESCE(tag, '')
FROM service_charges WHERE client_id = $1 AND charge_date BETWEEN $2 AND $3 AND status <> $4 ORDER BY charge_date`,
		clientID, from, to, string(ChargeCancelled))
	if err != nil {
		return nil, fmt.Errorf("billing: service charges for client: %w", err)
	}
	defer rows.Close()
	var charges []ServiceCharge
	for rows.Next() {
		var c ServiceCharge
		if err := rows.Scan(&c.ID, &c.ClientID, &c.CaseID, &c.Date, &c.Description, &c.Cost, &c.Expenses, &c.Tax, &c.Total, &c.Status, &c.Tag); err != nil {
			return nil, fmt.Errorf("billing: scan service charge: %w", err)
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

// InstallmentsForClient fetches all installment requests for a client.
// Installments are perpetual, so there is no date bound.
func (r *Repository) InstallmentsForClient(ctx context.Context, clientID uuid.UUID) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_id, COALESCE(title, ''), COALESCE(tag, ''), net_cost, amount_includes_tax, tax_amount, installment_count, per_installment, total_payable, status, amount_paid, balance
FROM installments WHERE client_id = $1 ORDER BY title`, clientID)
	if err != nil {
		return nil, fmt.Errorf("billing: installments for client: %w", err)
	}
	defer rows.Close()
	var installments []Installment
	for rows.Next() {
		var inst Installment
		if err := rows.Scan(&inst.ID, &inst.ClientID, &inst.Title, &inst.Tag, &inst.NetCost, &inst.AmountIncludesTax, &inst.TaxAmount, &inst.Count, &inst.PerInstallment, &inst.TotalPayable, &inst.Status, &inst.AmountPaid, &inst.Balance); err != nil {
			return nil, fmt.Errorf("billing: scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

// GroupForPrincipal returns the group a client leads, or nil.
func (r *Repository) GroupForPrincipal(ctx context.Context, clientID uuid.UUID) (*CompanyGroup, error) {
	var g CompanyGroup
	err := r.pool.QueryRow(ctx, `SELECT id, name, principal_id FROM company_groups WHERE principal_id = $1`, clientID).
		Scan(&g.ID, &g.Name, &g.PrincipalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("billing: group for principal: %w", err)
	}
	return &g, nil
}

// GroupMembers returns the member clients of a group.
func (r *Repository) GroupMembers(ctx context.Context, groupID uuid.UUID) ([]Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+`
FROM clients WHERE id IN (SELECT member_id FROM company_group_members WHERE group_id = $1) ORDER BY name`, groupID)
	if err != nil {
		return nil, fmt.Errorf("billing: group members: %w", err)
	}
	defer rows.Close()
	var members []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("billing: scan member: %w", err)
		}
		members = append(members, c)
	}
	return members, rows.Err()
}

// ErrGroupRoleTaken indicates a company already holds a group role.
var ErrGroupRoleTaken = errors.New("billing: company already belongs to a group")

// RegisterGroup creates a group and its memberships, enforcing the
// one-role-per-company invariant: a company may be principal of at
// most one group or member of at most one group, never both.
func (r *Repository) RegisterGroup(ctx context.Context, name string, principalID uuid.UUID, memberIDs []uuid.UUID) (*CompanyGroup, error) {
	group := CompanyGroup{ID: uuid.New(), Name: name, PrincipalID: principalID, MemberIDs: memberIDs}

	involved := append([]uuid.UUID{principalID}, memberIDs...)
	ids := make([]string, len(involved))
	for i, id := range involved {
		ids[i] = id.String()
	}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var taken int
		err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM (
  SELECT principal_id AS id FROM company_groups WHERE principal_id = ANY($1::uuid[])
  UNION ALL
  SELECT member_id FROM company_group_members WHERE member_id = ANY($1::uuid[])
) roles`, ids).Scan(&taken)
		if err != nil {
			return fmt.Errorf("billing: check group roles: %w", err)
		}
		if taken > 0 {
			return ErrGroupRoleTaken
		}

		if _, err := tx.Exec(ctx, `INSERT INTO company_groups (id, name, principal_id) VALUES ($1, $2, $3)`,
			group.ID, group.Name, group.PrincipalID); err != nil {
			return fmt.Errorf("billing: insert group: %w", err)
		}
		for _, memberID := range memberIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO company_group_members (group_id, member_id) VALUES ($1, $2)`,
				group.ID, memberID); err != nil {
				return fmt.Errorf("billing: insert group member: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ApprovalState reads the approval record for a client and period.
func (r *Repository) ApprovalState(ctx context.Context, clientID uuid.UUID, periodLabel string) (*ApprovalState, error) {
	var state ApprovalState
	err := r.pool.QueryRow(ctx, `SELECT client_id, period_label, status, COALESCE(reason, ''), COALESCE(evidence, ''), updated_at
FROM hour_approvals WHERE client_id = $1 AND period_label = $2`, clientID, periodLabel).
		Scan(&state.ClientID, &state.PeriodLabel, &state.Status, &state.Reason, &state.Evidence, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("billing: approval state: %w", err)
	}
	return &state, nil
}

// SaveApprovalState upserts the approval record for a client/period.
func (r *Repository) SaveApprovalState(ctx context.Context, state ApprovalState) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO hour_approvals (client_id, period_label, status, reason, evidence, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (client_id, period_label)
DO UPDATE SET status = EXCLUDED.status, reason = EXCLUDED.reason, evidence = EXCLUDED.evidence, updated_at = EXCLUDED.updated_at`,
		state.ClientID, state.PeriodLabel, string(state.Status), state.Reason, state.Evidence, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("billing: save approval state: %w", err)
	}
	return nil
}
