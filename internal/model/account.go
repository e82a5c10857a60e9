package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is anything a PayPal payment can be attributed to.
type Account interface {
	AccountID() uuid.UUID
	BillingEmailAddress() string
	ApplyCredit(amount decimal.Decimal)
}

type Organization struct {
	ID           uuid.UUID       `gorm:"type:char(36);primaryKey"`
	Name         string          `gorm:"size:50;not null"`
	BillingEmail string          `gorm:"size:256"`
	Credit       decimal.Decimal `gorm:"type:decimal(19,2);not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Organization) TableName() string { return "organizations" }

func (o *Organization) AccountID() uuid.UUID { return o.ID }

func (o *Organization) BillingEmailAddress() string {
	return strings.ToLower(strings.TrimSpace(o.BillingEmail))
}

func (o *Organization) ApplyCredit(amount decimal.Decimal) {
	o.Credit = o.Credit.Add(amount)
}

type User struct {
	ID        uuid.UUID       `gorm:"type:char(36);primaryKey"`
	Name      string          `gorm:"size:50"`
	Email     string          `gorm:"size:256;not null"`
	Credit    decimal.Decimal `gorm:"type:decimal(19,2);not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

func (u *User) AccountID() uuid.UUID { return u.ID }

func (u *User) BillingEmailAddress() string {
	return strings.ToLower(strings.TrimSpace(u.Email))
}

func (u *User) ApplyCredit(amount decimal.Decimal) {
	u.Credit = u.Credit.Add(amount)
}
