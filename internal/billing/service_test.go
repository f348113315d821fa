package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store with per-client error injection.
type fakeStore struct {
	clients       map[uuid.UUID]Client
	cases         map[uuid.UUID][]CaseRecord
	entriesClient map[uuid.UUID][]TimeEntry
	entriesCase   map[uuid.UUID][]TimeEntry
	expenses      map[uuid.UUID][]Expense
	charges       map[uuid.UUID][]ServiceCharge
	installments  map[uuid.UUID][]Installment
	groups        map[uuid.UUID]*CompanyGroup
	members       map[uuid.UUID][]Client
	approvals     map[string]ApprovalState

	clientErr   map[uuid.UUID]error
	casesErr    map[uuid.UUID]error
	expensesErr map[uuid.UUID]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:       make(map[uuid.UUID]Client),
		cases:         make(map[uuid.UUID][]CaseRecord),
		entriesClient: make(map[uuid.UUID][]TimeEntry),
		entriesCase:   make(map[uuid.UUID][]TimeEntry),
		expenses:      make(map[uuid.UUID][]Expense),
		charges:       make(map[uuid.UUID][]ServiceCharge),
		installments:  make(map[uuid.UUID][]Installment),
		groups:        make(map[uuid.UUID]*CompanyGroup),
		members:       make(map[uuid.UUID][]Client),
		approvals:     make(map[string]ApprovalState),
		clientErr:     make(map[uuid.UUID]error),
		casesErr:      make(map[uuid.UUID]error),
		expensesErr:   make(map[uuid.UUID]error),
	}
}

func (f *fakeStore) addClient(c Client) Client {
	f.clients[c.ID] = c
	return c
}

func (f *fakeStore) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	if err := f.clientErr[id]; err != nil {
		return Client{}, err
	}
	c, ok := f.clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListActiveClients(ctx context.Context) ([]Client, error) {
	var out []Client
	for _, c := range f.clients {
		if c.BillingActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) CasesForClient(ctx context.Context, clientID uuid.UUID) ([]CaseRecord, error) {
	if err := f.casesErr[clientID]; err != nil {
		return nil, err
	}
	return f.cases[clientID], nil
}

func (f *fakeStore) TimeEntriesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]TimeEntry, error) {
	return f.entriesClient[clientID], nil
}

func (f *fakeStore) TimeEntriesForCases(ctx context.Context, caseIDs []uuid.UUID, from, to time.Time) ([]TimeEntry, error) {
	var out []TimeEntry
	for _, id := range caseIDs {
		out = append(out, f.entriesCase[id]...)
	}
	return out, nil
}

func (f *fakeStore) ExpensesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]Expense, error) {
	if err := f.expensesErr[clientID]; err != nil {
		return nil, err
	}
	return f.expenses[clientID], nil
}

func (f *fakeStore) ServiceChargesForClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]ServiceCharge, error) {
	return f.charges[clientID], nil
}

func (f *fakeStore) InstallmentsForClient(ctx context.Context, clientID uuid.UUID) ([]Installment, error) {
	return f.installments[clientID], nil
}

func (f *fakeStore) GroupForPrincipal(ctx context.Context, clientID uuid.UUID) (*CompanyGroup, error) {
	return f.groups[clientID], nil
}

func (f *fakeStore) GroupMembers(ctx context.Context, groupID uuid.UUID) ([]Client, error) {
	return f.members[groupID], nil
}

func (f *fakeStore) ApprovalState(ctx context.Context, clientID uuid.UUID, label string) (*ApprovalState, error) {
	state, ok := f.approvals[clientID.String()+"|"+label]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func fixedClock() time.Time {
	return time.Date(2025, time.May, 10, 9, 0, 0, 0, time.UTC)
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, nil).WithClock(fixedClock)
}

func TestCurrentPeriodFromClockAndOverride(t *testing.T) {
	svc := newTestService(newFakeStore())
	ctx := context.Background()

	assert.Equal(t, "2025-04", svc.CurrentPeriod(ctx, "").Label)
	assert.Equal(t, "2024-12", svc.CurrentPeriod(ctx, "2025-01-15").Label)
	// Invalid overrides fall back to the real clock.
	assert.Equal(t, "2025-04", svc.CurrentPeriod(ctx, "not-a-date").Label)
	assert.Equal(t, "2025-04", svc.CurrentPeriod(ctx, "15/01/2025").Label)
}

func TestStatementIndividualDirectLinkage(t *testing.T) {
	store := newFakeStore()
	client := store.addClient(Client{ID: uuid.New(), Name: "Ana Rojas", Kind: ClientIndividual, HourlyRate: ptr(40000.0), TaxRate: ptr(0.13), BillingActive: true})
	store.entriesClient[client.ID] = []TimeEntry{{Duration: "2:00"}, {Duration: "1:30"}}

	svc := newTestService(store)
	stmt, err := svc.Statement(context.Background(), client.ID, PeriodOf(2025, time.April))
	require.NoError(t, err)
	assert.Equal(t, 210, stmt.Minutes)
	assert.InDelta(t, 140000, stmt.HourCost, 0.01)
}

func TestStatementCorporateThroughCases(t *testing.T) {
	store := newFakeStore()
	client := store.addClient(Client{ID: uuid.New(), Name: "Constructora Sol S.A.", Kind: ClientCorporate, HourlyRate: ptr(50000.0), TaxRate: ptr(0.13), BillingActive: true})
	caseA, caseB := uuid.New(), uuid.New()
	store.cases[client.ID] = []CaseRecord{{ID: caseA, ClientID: client.ID, Name: "Litigio 14-22"}, {ID: caseB, ClientID: client.ID, Name: "Registro marcario"}}
	store.entriesCase[caseA] = []TimeEntry{{Duration: "1:30"}, {Duration: "0:45"}}
	store.entriesCase[caseB] = []TimeEntry{{Duration: "2:00"}}

	svc := newTestService(store)
	stmt, err := svc.Statement(context.Background(), client.ID, PeriodOf(2025, time.April))
	require.NoError(t, err)
	assert.Equal(t, 255, stmt.Minutes)
	assert.InDelta(t, 240125.00, stmt.GrandTotal, 0.01)
}

func TestStatementCorporateWithoutCases(t *testing.T) {
	store := newFakeStore()
	client := store.addClient(Client{ID: uuid.New(), Name: "Inversiones Luna S.A.", Kind: ClientCorporate, BillingActive: true})

	svc := newTestService(store)
	stmt, err := svc.Statement(context.Background(), client.ID, PeriodOf(2025, time.April))
	require.NoError(t, err)
	assert.Zero(t, stmt.Minutes)
	assert.Zero(t, stmt.GrandTotal)
}

func TestStatementMissingCasesDegrades(t *testing.T) {
	store := newFakeStore()
	client := store.addClient(Client{ID: uuid.New(), Name: "Grupo Norte S.A.", Kind: ClientCorporate, BillingActive: true})
	store.casesErr[client.ID] = ErrNotFound
	store.expenses[client.ID] = []Expense{{Amount: 5000, Status: ExpensePaid}}

	svc := newTestService(store)
	stmt, err := svc.Statement(context.Background(), client.ID, PeriodOf(2025, time.April))
	require.NoError(t, err)
	assert.Zero(t, stmt.Minutes)
	assert.InDelta(t, 5000, stmt.ExpenseTotal, 0.01)
}

func TestStatementStoreFailureIsDataAccess(t *testing.T) {
	store := newFakeStore()
	client := store.addClient(Client{ID: uuid.New(), Name: "Grupo Norte S.A.", Kind: ClientIndividual, BillingActive: true})
	store.expensesErr[client.ID] = errors.New("connection refused")

	svc := newTestService(store)
	_, err := svc.Statement(context.Background(), client.ID, PeriodOf(2025, time.April))
	require.ErrorIs(t, err, ErrDataAccess)
}

func TestStatementUnknownClient(t *testing.T) {
	svc := newTestService(newFakeStore())
	_, err := svc.Statement(context.Background(), uuid.New(), PeriodOf(2025, time.April))
	require.ErrorIs(t, err, ErrClientNotFound)
}

func TestStatementClientLookupOutageIsDataAccess(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.clientErr[id] = errors.New("connection refused")

	svc := newTestService(store)
	_, err := svc.Statement(context.Background(), id, PeriodOf(2025, time.April))
	require.ErrorIs(t, err, ErrDataAccess)
	require.NotErrorIs(t, err, ErrClientNotFound)
}

func TestRollUpClientLookupOutageIsDataAccess(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.clientErr[id] = errors.New("connection refused")

	svc := newTestService(store)
	_, err := svc.RollUp(context.Background(), id, PeriodOf(2025, time.April))
	require.ErrorIs(t, err, ErrDataAccess)
	require.NotErrorIs(t, err, ErrClientNotFound)
}

func TestStatementApprovalAnnotation(t *testing.T) {
	store := newFakeStore()
	client := store.addClient(Client{ID: uuid.New(), Name: "Ana Rojas", Kind: ClientIndividual, BillingActive: true, ApprovalRequired: true})
	period := PeriodOf(2025, time.April)
	store.approvals[client.ID.String()+"|"+period.Label] = ApprovalState{ClientID: client.ID, PeriodLabel: period.Label, Status: ApprovalApproved}

	svc := newTestService(store)
	stmt, err := svc.Statement(context.Background(), client.ID, period)
	require.NoError(t, err)
	assert.True(t, stmt.ApprovalRequired)
	assert.Equal(t, ApprovalApproved, stmt.ApprovalStatus)

	// No record yet reads as pending.
	other := store.addClient(Client{ID: uuid.New(), Name: "Luis Mora", Kind: ClientIndividual, BillingActive: true, ApprovalRequired: true})
	stmt, err = svc.Statement(context.Background(), other.ID, period)
	require.NoError(t, err)
	assert.Equal(t, ApprovalPending, stmt.ApprovalStatus)
}

func expenseOnlyClient(store *fakeStore, name string, amount float64) Client {
	client := store.addClient(Client{ID: uuid.New(), Name: name, Kind: ClientCorporate, BillingActive: true})
	store.expenses[client.ID] = []Expense{{Amount: amount, Status: ExpensePaid}}
	return client
}

func TestRollUpAdditivity(t *testing.T) {
	store := newFakeStore()
	principal := expenseOnlyClient(store, "Grupo Andino S.A.", 300000)
	memberA := expenseOnlyClient(store, "Andino Retail S.A.", 100000)
	memberB := expenseOnlyClient(store, "Andino Logistica S.A.", 50000)
	group := &CompanyGroup{ID: uuid.New(), Name: "Grupo Andino", PrincipalID: principal.ID}
	store.groups[principal.ID] = group
	store.members[group.ID] = []Client{memberA, memberB}

	svc := newTestService(store)
	period := PeriodOf(2025, time.April)

	result, err := svc.RollUp(context.Background(), principal.ID, period)
	require.NoError(t, err)
	assert.Len(t, result.Members, 2)
	assert.InDelta(t, 450000, result.GrandTotal, 0.01)

	// Removing a member is reflected on the next computation.
	store.members[group.ID] = []Client{memberA}
	result, err = svc.RollUp(context.Background(), principal.ID, period)
	require.NoError(t, err)
	assert.InDelta(t, 400000, result.GrandTotal, 0.01)
}

func TestRollUpMemberFailureIsIsolated(t *testing.T) {
	store := newFakeStore()
	principal := expenseOnlyClient(store, "Grupo Andino S.A.", 300000)
	healthy := expenseOnlyClient(store, "Andino Retail S.A.", 100000)
	broken := expenseOnlyClient(store, "Andino Datos S.A.", 99999)
	store.expensesErr[broken.ID] = errors.New("connection refused")
	group := &CompanyGroup{ID: uuid.New(), Name: "Grupo Andino", PrincipalID: principal.ID}
	store.groups[principal.ID] = group
	store.members[group.ID] = []Client{healthy, broken}

	svc := newTestService(store)
	result, err := svc.RollUp(context.Background(), principal.ID, PeriodOf(2025, time.April))
	require.NoError(t, err)

	var failed, ok int
	for _, m := range result.Members {
		if m.Err != "" {
			failed++
			assert.Nil(t, m.Statement)
		} else {
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, ok)
	assert.InDelta(t, 400000, result.GrandTotal, 0.01)
}

func TestRollUpWithoutGroup(t *testing.T) {
	store := newFakeStore()
	client := expenseOnlyClient(store, "Ana Rojas", 75000)

	svc := newTestService(store)
	result, err := svc.RollUp(context.Background(), client.ID, PeriodOf(2025, time.April))
	require.NoError(t, err)
	assert.Empty(t, result.Members)
	assert.Equal(t, uuid.UUID{}, result.GroupID)
	assert.InDelta(t, 75000, result.GrandTotal, 0.01)
}

func TestRosterPartialResults(t *testing.T) {
	store := newFakeStore()
	expenseOnlyClient(store, "Alfa S.A.", 10000)
	expenseOnlyClient(store, "Beta S.A.", 20000)
	broken := store.addClient(Client{ID: uuid.New(), Name: "Rota S.A.", Kind: ClientIndividual, BillingActive: true})
	store.expensesErr[broken.ID] = errors.New("connection refused")
	store.addClient(Client{ID: uuid.New(), Name: "Inactiva S.A.", Kind: ClientIndividual, BillingActive: false})

	svc := newTestService(store)
	report, err := svc.Roster(context.Background(), PeriodOf(2025, time.April))
	require.NoError(t, err)
	require.Len(t, report.Entries, 3, "inactive clients stay out of the roster")

	byName := make(map[string]RosterEntry)
	for _, e := range report.Entries {
		byName[e.ClientName] = e
	}
	assert.NotEmpty(t, byName["Rota S.A."].Err)
	assert.Nil(t, byName["Rota S.A."].Statement)
	require.NotNil(t, byName["Beta S.A."].Statement)
	assert.InDelta(t, 20000, byName["Beta S.A."].Statement.GrandTotal, 0.01)
	assert.InDelta(t, 30000, report.GrandTotal, 0.01)
}

func TestRosterTotalsMatchDisplayedStatements(t *testing.T) {
	store := newFakeStore()
	// Tax-inclusive installments produce repeating decimals; the report
	// total must equal the sum of the already-rounded statement totals.
	for _, name := range []string{"Uno S.A.", "Dos S.A.", "Tres S.A."} {
		client := store.addClient(Client{ID: uuid.New(), Name: name, Kind: ClientCorporate, TaxRate: ptr(0.13), BillingActive: true})
		store.installments[client.ID] = []Installment{{Tag: TagMonthly, PerInstallment: 33333.33, AmountIncludesTax: true, Status: InstallmentActive}}
	}

	svc := newTestService(store)
	report, err := svc.Roster(context.Background(), PeriodOf(2025, time.April))
	require.NoError(t, err)

	var sum float64
	for _, e := range report.Entries {
		require.NotNil(t, e.Statement)
		sum += e.Statement.GrandTotal
	}
	assert.Equal(t, Round2(sum), report.GrandTotal)
}

func TestRosterDeterministicOrder(t *testing.T) {
	store := newFakeStore()
	expenseOnlyClient(store, "Zeta S.A.", 1000)
	expenseOnlyClient(store, "Alfa S.A.", 1000)
	expenseOnlyClient(store, "Media S.A.", 1000)

	svc := newTestService(store)
	report, err := svc.Roster(context.Background(), PeriodOf(2025, time.April))
	require.NoError(t, err)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, "Alfa S.A.", report.Entries[0].ClientName)
	assert.Equal(t, "Media S.A.", report.Entries[1].ClientName)
	assert.Equal(t, "Zeta S.A.", report.Entries[2].ClientName)
}
