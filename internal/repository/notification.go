package repository

import (
	"context"

	"paypal-billing/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository interface {
	// ProcessedBefore reports whether the delivery was already recorded with
	// the given status.
	ProcessedBefore(ctx context.Context, source, deliveryKey, status string) (bool, error)
	// Record upserts the latest outcome of a delivery.
	Record(ctx context.Context, notification *model.Notification) error
}

type notificationRepoImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepoImpl{db: db}
}

func (r *notificationRepoImpl) ProcessedBefore(ctx context.Context, source, deliveryKey, status string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.Notification{}).
		Where("source = ? AND delivery_key = ? AND status = ?", source, deliveryKey, status).
		Count(&count).Error

	return count > 0, err
}

func (r *notificationRepoImpl) Record(ctx context.Context, notification *model.Notification) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "delivery_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "gateway_id", "status", "reason", "processed_at"}),
	}).Create(notification).Error
}
