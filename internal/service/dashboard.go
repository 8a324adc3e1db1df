package service

import (
	"context"
	"fmt"

	"vendorse/internal/models"

	"go.uber.org/zap"
)

func statsKey(userId string) string {
	return "dashboard:stats:" + userId
}

// DashboardStats returns the actor's role-specific counters, served from the
// cache when a fresh entry exists.
func (s *Service) DashboardStats(ctx context.Context, actor models.Actor) (models.DashboardStats, error) {
	strategy, err := strategyFor(actor.Role)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("service.Service.DashboardStats: %w", err)
	}

	var stats models.DashboardStats
	hit, err := s.cache.Get(ctx, statsKey(actor.Id), &stats)
	if err != nil {
		s.log.Warn("stats cache read failed", zap.String("userId", actor.Id), zap.Error(err))
	}
	if hit {
		return stats, nil
	}

	stats, err = strategy.stats(ctx, s.store, actor)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("service.Service.DashboardStats: %w", err)
	}

	err = s.cache.Set(ctx, statsKey(actor.Id), stats)
	if err != nil {
		s.log.Warn("stats cache write failed", zap.String("userId", actor.Id), zap.Error(err))
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, userIds ...string) {
	keys := make([]string, 0, len(userIds))
	for _, id := range userIds {
		if id != "" {
			keys = append(keys, statsKey(id))
		}
	}

	err := s.cache.Delete(ctx, keys...)
	if err != nil {
		s.log.Warn("stats cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *Service) ListNotifications(ctx context.Context, actor models.Actor, page, limit int) ([]models.Notification, error) {
	page, limit = pageParams(page, limit)

	notifications, err := s.store.ListNotifications(ctx, actor.Id, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListNotifications: %w", err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}
