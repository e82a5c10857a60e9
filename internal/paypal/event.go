// Package paypal turns verified PayPal notifications (REST webhooks and
// legacy IPN posts) into a single Event shape for the reconciler.
package paypal

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedPayload means the notification could not be decoded; callers reject it.
	ErrMalformedPayload = errors.New("paypal: malformed payload")
	// ErrEventIgnored means the notification is well formed but of a kind we do not reconcile.
	ErrEventIgnored = errors.New("paypal: event ignored")
)

type Kind string

const (
	KindSaleCompleted Kind = "sale_completed"
	KindSaleRefunded  Kind = "sale_refunded"
	KindLegacyCredit  Kind = "legacy_credit"
	KindLegacyRefund  Kind = "legacy_refund"
)

type Source string

const (
	SourceWebhook Source = "webhook"
	SourceIPN     Source = "ipn"
)

// AccountIDs are the internal accounts a payment is attributed to. Upstream
// only ever fills one of them, but both may be present.
type AccountIDs struct {
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
}

func (a AccountIDs) Empty() bool {
	return a.OrganizationID == nil && a.UserID == nil
}

type Event struct {
	Kind   Kind
	Source Source

	// EventID is the webhook envelope id; empty for IPN.
	EventID             string
	ProviderTxnID       string
	ParentProviderTxnID string

	Amount decimal.Decimal
	// TotalRefunded is the cumulative refunded value PayPal reports on webhook refunds.
	TotalRefunded *decimal.Decimal
	OccurredAt    time.Time

	Accounts      AccountIDs
	AccountCredit bool

	// Legacy IPN fields.
	PaymentStatus   string
	TransactionType string
	ReceiverID      string
	Currency        string
	PaymentType     string
}

func (e *Event) IsRefund() bool {
	return e.Kind == KindSaleRefunded || e.Kind == KindLegacyRefund
}

// DeliveryKey identifies one notification as PayPal delivers it: the envelope
// id for webhooks, txn_id plus status for IPN.
func (e *Event) DeliveryKey() string {
	if e.Source == SourceWebhook && e.EventID != "" {
		return e.EventID
	}
	return e.ProviderTxnID + ":" + e.PaymentStatus
}
