package repository

import (
	"context"
	"fmt"
	"time"

	"vendorse/internal/models"
)

type notificationRow struct {
	Id        string                  `db:"id"`
	UserId    string                  `db:"user_id"`
	Type      models.NotificationType `db:"type"`
	Message   string                  `db:"message"`
	Read      bool                    `db:"read"`
	CreatedAt time.Time               `db:"created_at"`
}

func (repo *Repository) AddNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	query := `
	INSERT INTO notifications (user_id, type, message)
	VALUES ($1, $2, $3)
	RETURNING id, user_id, type, message, read, created_at
	`

	var row notificationRow
	err := repo.getContext(ctx, &row, query, n.UserId, n.Type, n.Message)
	if err != nil {
		return models.Notification{}, fmt.Errorf("repository.Repository.AddNotification: %w", err)
	}
	return models.Notification(row), nil
}

func (repo *Repository) ListNotifications(ctx context.Context, userId string, limit, offset int) ([]models.Notification, error) {
	query := `
	SELECT id, user_id, type, message, read, created_at
	FROM notifications
	WHERE user_id = $3
	ORDER BY created_at DESC, id
	LIMIT $1
	OFFSET $2
	`

	var rows []notificationRow
	err := repo.selectContext(ctx, &rows, query, limitParam(limit), offset, userId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ListNotifications: %w", err)
	}

	result := make([]models.Notification, 0, len(rows))
	for _, r := range rows {
		result = append(result, models.Notification(r))
	}
	return result, nil
}

func (repo *Repository) AppendAudit(ctx context.Context, entry models.AuditLog) error {
	query := `
	INSERT INTO audit_logs (actor_id, action_type, target_id, target_type, ip_address)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := repo.exec(ctx, query, entry.ActorId, entry.ActionType, entry.TargetId, entry.TargetType, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("repository.Repository.AppendAudit: %w", err)
	}
	return nil
}
