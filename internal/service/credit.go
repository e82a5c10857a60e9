package service

import (
	"context"

	"paypal-billing/internal/model"

	"github.com/shopspring/decimal"
)

// AccountCreditSink applies a PayPal payment to an account balance. It reports
// whether the account changed and must be persisted.
type AccountCreditSink interface {
	Credit(ctx context.Context, account model.Account, amount decimal.Decimal) (bool, error)
}

type balanceCreditSink struct{}

func NewBalanceCreditSink() AccountCreditSink {
	return balanceCreditSink{}
}

func (balanceCreditSink) Credit(_ context.Context, account model.Account, amount decimal.Decimal) (bool, error) {
	if account == nil || !amount.IsPositive() {
		return false, nil
	}
	account.ApplyCredit(amount)
	return true, nil
}
