package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GatewayType string

const (
	GatewayPayPal GatewayType = "PAYPAL"
)

type TransactionType string

const (
	TransactionTypeCharge TransactionType = "CHARGE"
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeRefund TransactionType = "REFUND"
)

type PaymentMethodType string

const (
	PaymentMethodPayPal PaymentMethodType = "PAYPAL"
)

// Transaction is one ledger row. (Gateway, GatewayID) is the idempotency key.
type Transaction struct {
	ID                uuid.UUID         `gorm:"type:char(36);primaryKey"`
	Gateway           GatewayType       `gorm:"size:16;not null;uniqueIndex:ux_transactions_gateway_id,priority:1"`
	GatewayID         string            `gorm:"size:64;not null;uniqueIndex:ux_transactions_gateway_id,priority:2"`
	Amount            decimal.Decimal   `gorm:"type:decimal(19,2);not null"`
	CreationDate      time.Time         `gorm:"not null"`
	OrganizationID    *uuid.UUID        `gorm:"type:char(36);index"`
	UserID            *uuid.UUID        `gorm:"type:char(36);index"`
	Type              TransactionType   `gorm:"size:16;not null"`
	PaymentMethodType PaymentMethodType `gorm:"size:16"`
	Refunded          *bool
	RefundedAmount    *decimal.Decimal `gorm:"type:decimal(19,2)"`
	Details           string           `gorm:"size:100"`
	// Version is bumped on every refund update; see TransactionRepository.Replace.
	Version int64 `gorm:"not null;default:0"`

	Organization *Organization `gorm:"foreignKey:OrganizationID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	User         *User         `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Transaction) TableName() string { return "transactions" }

// RefundedSoFar treats an unset refunded amount as zero.
func (t *Transaction) RefundedSoFar() decimal.Decimal {
	if t.RefundedAmount == nil {
		return decimal.Zero
	}
	return *t.RefundedAmount
}

func (t *Transaction) IsRefunded() bool {
	return t.Refunded != nil && *t.Refunded
}

// RemainingRefundable is amount minus whatever has already been refunded.
func (t *Transaction) RemainingRefundable() decimal.Decimal {
	return t.Amount.Sub(t.RefundedSoFar())
}

// ApplyRefund adds amount to the refunded total and flips Refunded once the
// whole charge has been returned. Callers check capacity first.
func (t *Transaction) ApplyRefund(amount decimal.Decimal) {
	total := t.RefundedSoFar().Add(amount)
	t.RefundedAmount = &total
	if total.Equal(t.Amount) {
		refunded := true
		t.Refunded = &refunded
	}
}
