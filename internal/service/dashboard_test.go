package service

import (
	"context"
	"testing"
	"time"

	"vendorse/internal/cache"
	"vendorse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStatsByRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.draftTender(t, f.buyer)
	tender := f.publishedTender(t, f.buyer)
	f.submitBid(t, f.vendor, tender.Id)
	f.submitBid(t, f.vendor, tender.Id)

	stats, err := f.svc.DashboardStats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{TotalTenders: 2, ActiveTenders: 1, TotalUsers: 4}, stats)

	stats, err = f.svc.DashboardStats(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{TotalTenders: 2, ActiveTenders: 1}, stats)

	stats, err = f.svc.DashboardStats(ctx, f.vendor)
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{SubmittedBids: 2}, stats)

	stats, err = f.svc.DashboardStats(ctx, f.reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{PendingEvaluations: 2}, stats)

	_, err = f.svc.DashboardStats(ctx, models.Actor{Id: "x", Role: "GUEST"})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestDashboardStatsCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := newFixture(t, WithCache(cache.New(client, "test:", time.Minute)))
	tender := f.publishedTender(t, f.buyer)

	stats, err := f.svc.DashboardStats(ctx, f.vendor)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SubmittedBids)
	assert.True(t, mr.Exists("test:"+statsKey(f.vendor.Id)))

	// the vendor's own submission invalidates their entry
	f.submitBid(t, f.vendor, tender.Id)
	assert.False(t, mr.Exists("test:"+statsKey(f.vendor.Id)))

	stats, err = f.svc.DashboardStats(ctx, f.vendor)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SubmittedBids)

	// a write straight to the store is only seen after the entry expires
	_, err = f.store.CreateBid(ctx, models.Bid{TenderId: tender.Id, SubmittedById: f.vendor.Id, Status: models.BidSubmitted})
	require.NoError(t, err)
	stats, err = f.svc.DashboardStats(ctx, f.vendor)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SubmittedBids)

	mr.FastForward(2 * time.Minute)
	stats, err = f.svc.DashboardStats(ctx, f.vendor)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SubmittedBids)

	// an unavailable cache degrades to direct reads
	mr.Close()
	stats, err = f.svc.DashboardStats(ctx, f.vendor)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SubmittedBids)
}

func TestListNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tender := f.publishedTender(t, f.buyer)
	bid := f.submitBid(t, f.vendor, tender.Id)

	_, err := f.svc.EvaluateBid(ctx, f.reviewer, bid.Id, []models.CriterionScore{
		{Criteria: "cost", Score: 10},
		{Criteria: "quality", Score: 20},
		{Criteria: "delivery", Score: 30},
	})
	require.NoError(t, err)

	notes, err := f.svc.ListNotifications(ctx, f.vendor, 1, 2)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0].Message, "delivery")

	notes, err = f.svc.ListNotifications(ctx, f.vendor, 2, 2)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	notes, err = f.svc.ListNotifications(ctx, f.buyer, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}
