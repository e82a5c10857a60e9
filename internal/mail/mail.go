// Package mail sends the billing emails triggered by PayPal reconciliation.
package mail

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Notifier tells an account owner that credit was added to their balance.
type Notifier interface {
	SendCreditNotice(ctx context.Context, billingEmail string, amount decimal.Decimal) error
}

// Sender delivers one fully built email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

type Email struct {
	FromName string
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

type creditNotifier struct {
	sender   Sender
	from     string
	fromName string
}

func NewCreditNotifier(sender Sender, from, fromName string) Notifier {
	return &creditNotifier{
		sender:   sender,
		from:     from,
		fromName: fromName,
	}
}

func (n *creditNotifier) SendCreditNotice(ctx context.Context, billingEmail string, amount decimal.Decimal) error {
	text, html, err := renderCreditNotice(amount)
	if err != nil {
		return fmt.Errorf("render credit notice: %w", err)
	}

	err = n.sender.Send(ctx, Email{
		FromName: n.fromName,
		From:     n.from,
		To:       []string{billingEmail},
		Subject:  "You have been credited",
		TextBody: text,
		HTMLBody: html,
	})
	if err != nil {
		return fmt.Errorf("send credit notice to %s: %w", billingEmail, err)
	}
	return nil
}
