package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RollUp consolidates a principal company and its affiliated members
// into one group statement. Each company runs the full collect and
// aggregate pipeline with its own rates; membership does not imply
// shared rates. Member computations fan out concurrently and a member
// failure is recorded on its entry without disturbing siblings.
//
// A client with no group registration gets a group statement wrapping
// only its own figures.
func (s *Service) RollUp(ctx context.Context, principalID uuid.UUID, period Period) (GroupStatement, error) {
	principal, err := s.lookupClient(ctx, principalID)
	if err != nil {
		return GroupStatement{}, err
	}

	own, err := s.statementFor(ctx, principal, period)
	if err != nil {
		return GroupStatement{}, err
	}
	result := GroupStatement{
		Period:     period,
		Principal:  own,
		Subtotal:   own.Subtotal,
		TotalTax:   own.TotalTax,
		GrandTotal: own.GrandTotal,
	}

	group, err := s.store.GroupForPrincipal(ctx, principalID)
	if err != nil {
		return GroupStatement{}, fmt.Errorf("%w: group lookup for %s: %v", ErrDataAccess, principalID, err)
	}
	if group == nil {
		return result, nil
	}
	result.GroupID = group.ID
	result.GroupName = group.Name

	members, err := s.store.GroupMembers(ctx, group.ID)
	if err != nil {
		return GroupStatement{}, fmt.Errorf("%w: group members for %s: %v", ErrDataAccess, group.ID, err)
	}

	entries := make([]MemberStatement, len(members))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterConcurrency)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			entries[i] = MemberStatement{ClientID: member.ID, ClientName: member.Name}
			stmt, err := s.statementFor(gctx, member, period)
			if err != nil {
				s.logger.WarnContext(gctx, "group member statement failed",
					slog.String("group_id", group.ID.String()),
					slog.String("client_id", member.ID.String()), slog.Any("error", err))
				entries[i].Err = err.Error()
				return nil
			}
			entries[i].Statement = &stmt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GroupStatement{}, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ClientName < entries[j].ClientName
	})
	result.Members = entries

	for _, entry := range entries {
		if entry.Statement == nil {
			continue
		}
		result.Subtotal += entry.Statement.Subtotal
		result.TotalTax += entry.Statement.TotalTax
		result.GrandTotal += entry.Statement.GrandTotal
	}
	result.Subtotal = Round2(result.Subtotal)
	result.TotalTax = Round2(result.TotalTax)
	result.GrandTotal = Round2(result.GrandTotal)
	return result, nil
}
