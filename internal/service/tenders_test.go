package service

import (
	"context"
	"testing"
	"time"

	"vendorse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTender(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tender, err := f.svc.CreateTender(ctx, f.buyer, models.NewTender{
		Title:    "  Road Repair ",
		Budget:   50000,
		Deadline: time.Now().Add(30 * 24 * time.Hour),
		Documents: []models.NewTenderDocument{
			{FileName: "scope.pdf", FilePath: "u/abc-scope.pdf", SignatureHash: "deadbeef"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Road Repair", tender.Title)
	assert.Equal(t, models.TenderDraft, tender.Status)
	assert.Equal(t, f.buyer.Id, tender.CreatedById)
	require.Len(t, tender.Documents, 1)
	assert.Equal(t, f.buyer.Id, tender.Documents[0].UploadedById)

	assert.Equal(t, []string{models.AuditTenderCreated}, f.store.auditActions(tender.Id))
	assert.Equal(t, 1, f.metrics.transitions[string(models.TenderDraft)])
}

func TestCreateTenderRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	deadline := time.Now().Add(time.Hour)

	_, err := f.svc.CreateTender(ctx, f.vendor, models.NewTender{Title: "x", Deadline: deadline})
	assert.ErrorIs(t, err, models.ErrForbidden)

	cases := map[string]models.NewTender{
		"no title":       {Deadline: deadline},
		"negative":       {Title: "x", Budget: -1, Deadline: deadline},
		"budget too big": {Title: "x", Budget: 1e13, Deadline: deadline},
		"no deadline":    {Title: "x"},
		"undocumented":   {Title: "x", Deadline: deadline, Documents: []models.NewTenderDocument{{FileName: "a"}}},
		"title too long": {Title: string(make([]rune, 201)), Deadline: deadline},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateTender(ctx, f.buyer, in)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
	assert.Empty(t, f.store.tenders)
}

func TestCreateTenderRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.failOn = "AddTenderDocument"

	_, err := f.svc.CreateTender(context.Background(), f.buyer, models.NewTender{
		Title:     "Bridge",
		Deadline:  time.Now().Add(time.Hour),
		Documents: []models.NewTenderDocument{{FileName: "a.pdf", FilePath: "k", SignatureHash: "h"}},
	})
	require.Error(t, err)
	assert.Empty(t, f.store.tenders)
	assert.Empty(t, f.store.audit)
}

func TestPublishTender(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tender := f.draftTender(t, f.buyer)

	// only the creator may publish
	otherBuyer := f.addUser(t, models.RoleBuyer)
	_, err := f.svc.PublishTender(ctx, otherBuyer, tender.Id)
	assert.ErrorIs(t, err, models.ErrNotOwner)

	_, err = f.svc.PublishTender(ctx, f.vendor, tender.Id)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, models.TenderDraft, f.store.tenders[tender.Id].Status)

	published, err := f.svc.PublishTender(ctx, f.buyer, tender.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TenderPublished, published.Status)
	assert.Contains(t, f.store.auditActions(tender.Id), models.AuditTenderPublished)

	// republishing is a state error, not a silent no-op
	_, err = f.svc.PublishTender(ctx, f.buyer, tender.Id)
	assert.ErrorIs(t, err, models.ErrTenderNotDraft)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.svc.PublishTender(ctx, f.buyer, "9b3c1a57-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, models.ErrNoTender)
}

func TestAwardTender(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tender := f.publishedTender(t, f.buyer)

	vendor2 := f.addUser(t, models.RoleVendor)
	winner := f.submitBid(t, f.vendor, tender.Id)
	loser := f.submitBid(t, vendor2, tender.Id)

	_, err := f.svc.EvaluateBid(ctx, f.reviewer, loser.Id, []models.CriterionScore{{Criteria: "cost", Score: 40}})
	require.NoError(t, err)
	third := f.submitBidOnReview(t, tender.Id)

	awarded, err := f.svc.AwardTender(ctx, f.buyer, tender.Id, winner.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TenderAwarded, awarded.Status)

	assert.Equal(t, models.BidAccepted, f.store.bids[winner.Id].Status)
	assert.Equal(t, models.BidRejected, f.store.bids[third].Status)
	// bids already under review keep their status
	assert.Equal(t, models.BidUnderReview, f.store.bids[loser.Id].Status)

	notes := f.store.notificationsOf(f.vendor.Id)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyTenderAwarded, notes[0].Type)
	assert.Contains(t, f.store.auditActions(tender.Id), models.AuditTenderAwarded)

	// tender is locked before the bid
	assert.Contains(t, f.store.locks, "tender:"+tender.Id)
	assert.Contains(t, f.store.locks, "bid:"+winner.Id)

	// double award
	_, err = f.svc.AwardTender(ctx, f.buyer, tender.Id, winner.Id)
	assert.ErrorIs(t, err, models.ErrTenderClosed)
}

// submitBidOnReview submits a bid from a fresh vendor while the tender is
// UNDER_REVIEW by writing it straight to the store.
func (f *fixture) submitBidOnReview(t *testing.T, tenderId string) string {
	t.Helper()

	vendor := f.addUser(t, models.RoleVendor)
	bid, err := f.store.CreateBid(context.Background(), models.Bid{
		TenderId:      tenderId,
		SubmittedById: vendor.Id,
		Status:        models.BidSubmitted,
	})
	require.NoError(t, err)
	return bid.Id
}

func TestAwardTenderRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	draft := f.draftTender(t, f.buyer)
	_, err := f.svc.AwardTender(ctx, f.buyer, draft.Id, "missing")
	assert.ErrorIs(t, err, models.ErrTenderNotPublished)

	tender := f.publishedTender(t, f.buyer)
	bid := f.submitBid(t, f.vendor, tender.Id)

	other := f.publishedTender(t, f.buyer)
	foreign := f.submitBid(t, f.vendor, other.Id)

	_, err = f.svc.AwardTender(ctx, f.admin, tender.Id, bid.Id)
	assert.ErrorIs(t, err, models.ErrNotOwner)

	_, err = f.svc.AwardTender(ctx, f.reviewer, tender.Id, bid.Id)
	assert.ErrorIs(t, err, models.ErrRoleNotAllowed)

	_, err = f.svc.AwardTender(ctx, f.buyer, tender.Id, foreign.Id)
	assert.ErrorIs(t, err, models.ErrNoBid)

	assert.Equal(t, models.TenderPublished, f.store.tenders[tender.Id].Status)
	assert.Equal(t, models.BidSubmitted, f.store.bids[bid.Id].Status)
}

func TestGetTenderVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	draft := f.draftTender(t, f.buyer)
	_, err := f.svc.GetTender(ctx, f.vendor, draft.Id)
	assert.ErrorIs(t, err, models.ErrTenderHidden)
	_, err = f.svc.GetTender(ctx, f.reviewer, draft.Id)
	assert.ErrorIs(t, err, models.ErrTenderHidden)

	got, err := f.svc.GetTender(ctx, f.buyer, draft.Id)
	require.NoError(t, err)
	assert.Equal(t, draft.Id, got.Id)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, f.buyer.Id, got.CreatedBy.Id)

	tender := f.publishedTender(t, f.buyer)
	vendor2 := f.addUser(t, models.RoleVendor)
	own := f.submitBid(t, f.vendor, tender.Id)
	scored := f.submitBid(t, vendor2, tender.Id)

	_, err = f.svc.EvaluateBid(ctx, f.reviewer, scored.Id, []models.CriterionScore{
		{Criteria: "cost", Score: 90},
		{Criteria: "technical", Score: 70},
	})
	require.NoError(t, err)

	// vendors see only their own bid
	got, err = f.svc.GetTender(ctx, f.vendor, tender.Id)
	require.NoError(t, err)
	require.Len(t, got.Bids, 1)
	assert.Equal(t, own.Id, got.Bids[0].Id)

	// reviewers see bids still waiting for review
	got, err = f.svc.GetTender(ctx, f.reviewer, tender.Id)
	require.NoError(t, err)
	require.Len(t, got.Bids, 1)
	assert.Equal(t, own.Id, got.Bids[0].Id)

	// the owner sees everything with aggregate scores
	got, err = f.svc.GetTender(ctx, f.buyer, tender.Id)
	require.NoError(t, err)
	require.Len(t, got.Bids, 2)
	assert.Equal(t, 2, got.BidCount)
	for _, b := range got.Bids {
		if b.Id == scored.Id {
			require.NotNil(t, b.Score)
			assert.InDelta(t, 80.0, *b.Score, 1e-9)
		} else {
			assert.Nil(t, b.Score)
		}
	}

	_, err = f.svc.GetTender(ctx, f.buyer, "8a7c3d10-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListTendersScopes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer2 := f.addUser(t, models.RoleBuyer)

	f.draftTender(t, f.buyer)
	open := f.publishedTender(t, f.buyer)
	f.publishedTender(t, buyer2)
	f.draftTender(t, buyer2)
	f.submitBid(t, f.vendor, open.Id)

	count := func(actor models.Actor, q models.TenderQuery) int {
		page, err := f.svc.ListTenders(ctx, actor, q)
		require.NoError(t, err)
		return page.Total
	}

	assert.Equal(t, 4, count(f.admin, models.TenderQuery{}))
	assert.Equal(t, 2, count(f.buyer, models.TenderQuery{}))
	assert.Equal(t, 1, count(f.buyer, models.TenderQuery{Statuses: []models.TenderStatus{models.TenderDraft}}))
	assert.Equal(t, 2, count(f.vendor, models.TenderQuery{}))
	// explicit filters narrow the role scope, never widen it
	assert.Equal(t, 0, count(f.vendor, models.TenderQuery{Statuses: []models.TenderStatus{models.TenderDraft}}))
	assert.Equal(t, 1, count(f.reviewer, models.TenderQuery{}))

	_, err := f.svc.ListTenders(ctx, f.admin, models.TenderQuery{Statuses: []models.TenderStatus{"OPEN"}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.ListTenders(ctx, models.Actor{Id: "x", Role: "GUEST"}, models.TenderQuery{})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestListTendersPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, f.draftTender(t, f.buyer).Id)
	}
	search, err := f.svc.CreateTender(ctx, f.buyer, models.NewTender{Title: "Harbour dredging", Deadline: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	page, err := f.svc.ListTenders(ctx, f.buyer, models.TenderQuery{Page: 2, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Tenders, 2)
	// newest first, so the last page holds the oldest
	assert.Equal(t, ids[1], page.Tenders[0].Id)
	assert.Equal(t, ids[0], page.Tenders[1].Id)

	page, err = f.svc.ListTenders(ctx, f.buyer, models.TenderQuery{Search: "harbour"})
	require.NoError(t, err)
	require.Len(t, page.Tenders, 1)
	assert.Equal(t, search.Id, page.Tenders[0].Id)

	page, err = f.svc.ListTenders(ctx, f.vendor, models.TenderQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Tenders)
	assert.Empty(t, page.Tenders)
}

func TestRoadRepairScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tender, err := f.svc.CreateTender(ctx, f.buyer, models.NewTender{
		Title:    "Road Repair",
		Budget:   50000,
		Deadline: time.Now().Add(30 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TenderDraft, tender.Status)

	vendor2 := f.addUser(t, models.RoleVendor)
	_, err = f.svc.PublishTender(ctx, vendor2, tender.Id)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, models.TenderDraft, f.store.tenders[tender.Id].Status)

	tender, err = f.svc.PublishTender(ctx, f.buyer, tender.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TenderPublished, tender.Status)

	bid, err := f.svc.SubmitBid(ctx, f.vendor, tender.Id, models.NewBid{
		Documents: []models.NewBidDocument{
			{FilePath: "v/a-offer.pdf", SignatureHash: "aa"},
			{FilePath: "v/b-prices.xlsx", SignatureHash: "bb"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.BidSubmitted, bid.Status)
	assert.Len(t, bid.Documents, 2)
	assert.Equal(t, models.TenderPublished, f.store.tenders[tender.Id].Status)

	auditBefore := len(f.store.audit)
	_, err = f.svc.EvaluateBid(ctx, f.reviewer, bid.Id, []models.CriterionScore{{Criteria: "cost", Score: 80}})
	require.NoError(t, err)
	assert.Equal(t, models.BidUnderReview, f.store.bids[bid.Id].Status)
	assert.Equal(t, models.TenderUnderReview, f.store.tenders[tender.Id].Status)
	assert.Len(t, f.store.notificationsOf(f.vendor.Id), 1)
	assert.Equal(t, auditBefore+1, len(f.store.audit))

	tender, err = f.svc.AwardTender(ctx, f.buyer, tender.Id, bid.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TenderAwarded, tender.Status)
	assert.Equal(t, models.BidAccepted, f.store.bids[bid.Id].Status)
}
