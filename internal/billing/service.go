package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// rosterConcurrency bounds the fan-out of roster-wide computations.
const rosterConcurrency = 8

// StatementObserver receives the outcome and timing of each statement
// computation. Implemented by observability.Metrics.
type StatementObserver interface {
	ObserveStatement(outcome string, elapsed time.Duration)
}

// Service is the monthly billing aggregation engine. All computation
// is derived from current store state on every call; the service owns
// no state of its own beyond its clock.
type Service struct {
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	observer StatementObserver
}

// NewService constructs the engine.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithObserver attaches statement computation metrics.
func (s *Service) WithObserver(observer StatementObserver) *Service {
	s.observer = observer
	return s
}

// CurrentPeriod resolves the billing period from the service clock.
// The override is a test-only reference date threaded explicitly by
// the caller; an override that does not parse is ignored with a
// warning. Gating overrides out of production is the caller's job.
func (s *Service) CurrentPeriod(ctx context.Context, override string) Period {
	ref := s.now()
	if override != "" {
		if t, ok := ParseReferenceOverride(override); ok {
			ref = t
		} else {
			s.logger.WarnContext(ctx, "ignoring invalid period override", slog.String("override", override))
		}
	}
	return ResolvePeriod(ref)
}

// Statement computes the statement for one client and period,
// annotated with the client's approval state for the period.
func (s *Service) Statement(ctx context.Context, clientID uuid.UUID, period Period) (Statement, error) {
	client, err := s.lookupClient(ctx, clientID)
	if err != nil {
		return Statement{}, err
	}
	return s.statementFor(ctx, client, period)
}

// lookupClient maps a missing row to ErrClientNotFound and any other
// store failure to ErrDataAccess, so an outage never reads as a 404.
func (s *Service) lookupClient(ctx context.Context, clientID uuid.UUID) (Client, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Client{}, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
		}
		return Client{}, fmt.Errorf("%w: get client %s: %v", ErrDataAccess, clientID, err)
	}
	return client, nil
}

func (s *Service) statementFor(ctx context.Context, client Client, period Period) (Statement, error) {
	start := time.Now()
	items, err := s.Collect(ctx, client, period)
	if err != nil {
		s.observe("error", time.Since(start))
		return Statement{}, err
	}
	stmt := Aggregate(client, period, items)
	s.annotateApproval(ctx, &stmt)
	s.observe("success", time.Since(start))
	return stmt, nil
}

func (s *Service) observe(outcome string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveStatement(outcome, elapsed)
	}
}

// annotateApproval attaches the current approval state. Absence of a
// record reads as pending; a read failure downgrades to pending with a
// warning rather than failing an otherwise complete statement.
func (s *Service) annotateApproval(ctx context.Context, stmt *Statement) {
	if !stmt.ApprovalRequired {
		return
	}
	state, err := s.store.ApprovalState(ctx, stmt.ClientID, stmt.Period.Label)
	if err != nil {
		s.logger.WarnContext(ctx, "approval state unavailable",
			slog.String("client_id", stmt.ClientID.String()), slog.String("period", stmt.Period.Label),
			slog.Any("error", err))
		stmt.ApprovalStatus = ApprovalPending
		return
	}
	if state == nil {
		stmt.ApprovalStatus = ApprovalPending
		return
	}
	stmt.ApprovalStatus = state.Status
}

// Roster computes statements for every billing-active client for the
// period, fanning out per client. A single client's failure becomes an
// error entry; the rest of the roster is still returned. Report totals
// add the rounded per-client figures so displayed numbers reconcile.
func (s *Service) Roster(ctx context.Context, period Period) (RosterReport, error) {
	clients, err := s.store.ListActiveClients(ctx)
	if err != nil {
		return RosterReport{}, fmt.Errorf("%w: list active clients: %v", ErrDataAccess, err)
	}

	entries := make([]RosterEntry, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterConcurrency)
	for i, client := range clients {
		i, client := i, client
		g.Go(func() error {
			entries[i] = RosterEntry{ClientID: client.ID, ClientName: client.Name}
			stmt, err := s.statementFor(gctx, client, period)
			if err != nil {
				s.logger.WarnContext(gctx, "roster entry failed",
					slog.String("client_id", client.ID.String()), slog.Any("error", err))
				entries[i].Err = err.Error()
				return nil
			}
			entries[i].Statement = &stmt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RosterReport{}, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ClientName < entries[j].ClientName
	})

	report := RosterReport{Period: period, Entries: entries}
	for _, entry := range entries {
		if entry.Statement == nil {
			continue
		}
		report.Subtotal += entry.Statement.Subtotal
		report.TotalTax += entry.Statement.TotalTax
		report.GrandTotal += entry.Statement.GrandTotal
	}
	report.Subtotal = Round2(report.Subtotal)
	report.TotalTax = Round2(report.TotalTax)
	report.GrandTotal = Round2(report.GrandTotal)
	return report, nil
}
