package paypal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"paypal-billing/internal/model"

	"github.com/shopspring/decimal"
)

// ParseWebhook decodes a webhook notification. Event types other than sale
// completed/refunded return ErrEventIgnored.
func ParseWebhook(body []byte, receivedAt time.Time) (*Event, error) {
	var envelope model.PayPalWebhookEvent
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode webhook envelope: %v", ErrMalformedPayload, err)
	}

	switch envelope.EventType {
	case model.EventTypeSaleCompleted:
		return parseSaleCompleted(&envelope, receivedAt)
	case model.EventTypeSaleRefunded:
		return parseSaleRefunded(&envelope, receivedAt)
	case "":
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedPayload)
	default:
		return nil, fmt.Errorf("%w: webhook event type %s", ErrEventIgnored, envelope.EventType)
	}
}

func parseSaleCompleted(envelope *model.PayPalWebhookEvent, receivedAt time.Time) (*Event, error) {
	var sale model.Sale
	if err := decodeResource(envelope, &sale); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sale.ID) == "" {
		return nil, fmt.Errorf("%w: sale without id", ErrMalformedPayload)
	}

	amount, err := parseAmount(sale.Amount.Total)
	if err != nil {
		return nil, err
	}

	return &Event{
		Kind:          KindSaleCompleted,
		Source:        SourceWebhook,
		EventID:       envelope.ID,
		ProviderTxnID: sale.ID,
		Amount:        amount,
		OccurredAt:    occurredAt(sale.CreateTime, receivedAt),
		Accounts:      ParseCustom(sale.Custom),
		AccountCredit: IsAccountCredit(sale.Custom),
		Currency:      sale.Amount.Currency,
	}, nil
}

func parseSaleRefunded(envelope *model.PayPalWebhookEvent, receivedAt time.Time) (*Event, error) {
	var refund model.SaleRefund
	if err := decodeResource(envelope, &refund); err != nil {
		return nil, err
	}
	if strings.TrimSpace(refund.ID) == "" {
		return nil, fmt.Errorf("%w: refund without id", ErrMalformedPayload)
	}
	if strings.TrimSpace(refund.SaleID) == "" {
		return nil, fmt.Errorf("%w: refund %s without sale_id", ErrMalformedPayload, refund.ID)
	}

	amount, err := parseAmount(refund.Amount.Total)
	if err != nil {
		return nil, err
	}

	ev := &Event{
		Kind:                KindSaleRefunded,
		Source:              SourceWebhook,
		EventID:             envelope.ID,
		ProviderTxnID:       refund.ID,
		ParentProviderTxnID: refund.SaleID,
		Amount:              amount,
		OccurredAt:          occurredAt(refund.CreateTime, receivedAt),
		Accounts:            ParseCustom(refund.Custom),
		AccountCredit:       IsAccountCredit(refund.Custom),
		Currency:            refund.Amount.Currency,
	}

	if refund.TotalRefundedAmount != nil && refund.TotalRefundedAmount.Value != "" {
		total, err := parseAmount(refund.TotalRefundedAmount.Value)
		if err != nil {
			return nil, err
		}
		ev.TotalRefunded = &total
	}

	return ev, nil
}

func decodeResource(envelope *model.PayPalWebhookEvent, out any) error {
	if len(envelope.Resource) == 0 || string(envelope.Resource) == "null" {
		return fmt.Errorf("%w: %s without resource", ErrMalformedPayload, envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Resource, out); err != nil {
		return fmt.Errorf("%w: decode %s resource: %v", ErrMalformedPayload, envelope.EventType, err)
	}
	return nil
}

// amountPlaces matches the decimal(19,2) ledger columns.
const amountPlaces = 2

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if strings.ContainsAny(raw, "eE") {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrMalformedPayload, raw)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrMalformedPayload, raw)
	}
	if !amount.Equal(amount.Round(amountPlaces)) {
		return decimal.Zero, fmt.Errorf("%w: amount %q has more than %d decimal places", ErrMalformedPayload, raw, amountPlaces)
	}
	return amount, nil
}

func occurredAt(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback.UTC()
	}
	return t.UTC()
}
