package model

import "time"

// Notification is the inbound log of every PayPal notification that reached
// the reconciler, keyed by how PayPal identifies the delivery.
type Notification struct {
	ID          uint      `gorm:"primaryKey"`
	Source      string    `gorm:"size:16;not null;uniqueIndex:ux_notifications_delivery,priority:1"`
	DeliveryKey string    `gorm:"size:128;not null;uniqueIndex:ux_notifications_delivery,priority:2"`
	Kind        string    `gorm:"size:32;not null"`
	GatewayID   string    `gorm:"size:64;index"`
	Status      string    `gorm:"size:16;not null"`
	Reason      string    `gorm:"size:32"`
	ReceivedAt  time.Time `gorm:"not null"`
	ProcessedAt time.Time `gorm:"not null"`
}

func (Notification) TableName() string { return "paypal_notifications" }
