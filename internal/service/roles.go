package service

import (
	"context"
	"fmt"

	"vendorse/internal/models"
)

// roleStrategy holds everything that differs between roles when reading
// tenders. Adding a role means adding one entry to strategies.
type roleStrategy interface {
	// scopeFilter is the predicate ANDed into every tender listing.
	scopeFilter(actor models.Actor) models.TenderScope
	canView(actor models.Actor, t models.Tender) error
	visibleBids(actor models.Actor, bids []models.Bid) []models.Bid
	stats(ctx context.Context, store Store, actor models.Actor) (models.DashboardStats, error)
}

var strategies = map[models.Role]roleStrategy{
	models.RoleAdmin:    adminStrategy{},
	models.RoleBuyer:    buyerStrategy{},
	models.RoleVendor:   vendorStrategy{},
	models.RoleReviewer: reviewerStrategy{},
}

func strategyFor(role models.Role) (roleStrategy, error) {
	s, ok := strategies[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRoleNotAllowed, role)
	}
	return s, nil
}

type adminStrategy struct{}

func (adminStrategy) scopeFilter(models.Actor) models.TenderScope { return models.TenderScope{} }

func (adminStrategy) canView(models.Actor, models.Tender) error { return nil }

func (adminStrategy) visibleBids(_ models.Actor, bids []models.Bid) []models.Bid { return bids }

func (adminStrategy) stats(ctx context.Context, store Store, _ models.Actor) (models.DashboardStats, error) {
	var stats models.DashboardStats
	var err error

	stats.TotalTenders, err = store.CountTenders(ctx, "", nil)
	if err != nil {
		return stats, err
	}
	stats.ActiveTenders, err = store.CountTenders(ctx, "", []models.TenderStatus{models.TenderPublished})
	if err != nil {
		return stats, err
	}
	stats.TotalUsers, err = store.CountUsers(ctx, models.UserFilter{})
	return stats, err
}

type buyerStrategy struct{}

func (buyerStrategy) scopeFilter(actor models.Actor) models.TenderScope {
	return models.TenderScope{CreatedBy: actor.Id}
}

func (buyerStrategy) canView(models.Actor, models.Tender) error { return nil }

func (buyerStrategy) visibleBids(_ models.Actor, bids []models.Bid) []models.Bid { return bids }

func (buyerStrategy) stats(ctx context.Context, store Store, actor models.Actor) (models.DashboardStats, error) {
	var stats models.DashboardStats
	var err error

	stats.TotalTenders, err = store.CountTenders(ctx, actor.Id, nil)
	if err != nil {
		return stats, err
	}
	stats.ActiveTenders, err = store.CountTenders(ctx, actor.Id, []models.TenderStatus{models.TenderPublished})
	return stats, err
}

type vendorStrategy struct{}

func (vendorStrategy) scopeFilter(models.Actor) models.TenderScope {
	return models.TenderScope{Statuses: []models.TenderStatus{models.TenderPublished}}
}

func (vendorStrategy) canView(_ models.Actor, t models.Tender) error {
	if t.Status == models.TenderDraft {
		return fmt.Errorf("%w: %s is %s", models.ErrTenderHidden, t.Id, t.Status)
	}
	return nil
}

// Vendors only see their own bids on a tender.
func (vendorStrategy) visibleBids(actor models.Actor, bids []models.Bid) []models.Bid {
	return filterBids(bids, func(b models.Bid) bool { return b.SubmittedById == actor.Id })
}

func (vendorStrategy) stats(ctx context.Context, store Store, actor models.Actor) (models.DashboardStats, error) {
	var stats models.DashboardStats
	var err error

	stats.SubmittedBids, err = store.CountUserBids(ctx, actor.Id)
	return stats, err
}

type reviewerStrategy struct{}

func (reviewerStrategy) scopeFilter(actor models.Actor) models.TenderScope {
	return models.TenderScope{PendingReviewer: actor.Id}
}

func (reviewerStrategy) canView(_ models.Actor, t models.Tender) error {
	if !models.TenderOpen(t.Status) {
		return fmt.Errorf("%w: %s is %s", models.ErrTenderHidden, t.Id, t.Status)
	}
	return nil
}

func (reviewerStrategy) visibleBids(_ models.Actor, bids []models.Bid) []models.Bid {
	return filterBids(bids, func(b models.Bid) bool { return b.Status == models.BidSubmitted })
}

func (reviewerStrategy) stats(ctx context.Context, store Store, actor models.Actor) (models.DashboardStats, error) {
	var stats models.DashboardStats
	var err error

	stats.PendingEvaluations, err = store.CountPendingEvaluations(ctx, actor.Id)
	return stats, err
}

func filterBids(bids []models.Bid, keep func(models.Bid) bool) []models.Bid {
	result := make([]models.Bid, 0, len(bids))
	for _, b := range bids {
		if keep(b) {
			result = append(result, b)
		}
	}
	return result
}
