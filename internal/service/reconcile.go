package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paypal-billing/internal/lock"
	"paypal-billing/internal/mail"
	"paypal-billing/internal/metrics"
	"paypal-billing/internal/model"
	"paypal-billing/internal/paypal"
	"paypal-billing/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultRefundAttempts = 3
	defaultLockTTL        = 10 * time.Second
	legacyCurrency        = "USD"
)

// Reconciler decides every ledger mutation caused by a PayPal notification.
type Reconciler interface {
	Reconcile(ctx context.Context, ev *paypal.Event) (Outcome, error)
}

type ReconcilerOptions struct {
	// BusinessID is the merchant account IPN messages must be addressed to.
	BusinessID string
	LockTTL    time.Duration
	// RefundAttempts bounds re-reads of a parent whose version moved underneath us.
	RefundAttempts int
}

type reconcilerImpl struct {
	log        *zap.Logger
	transactor repository.Transactor
	txRepo     repository.TransactionRepository
	orgRepo    repository.OrganizationRepository
	userRepo   repository.UserRepository
	sink       AccountCreditSink
	notifier   mail.Notifier
	locker     lock.Locker
	opts       ReconcilerOptions
}

func NewReconciler(
	log *zap.Logger,
	transactor repository.Transactor,
	txRepo repository.TransactionRepository,
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	sink AccountCreditSink,
	notifier mail.Notifier,
	locker lock.Locker,
	opts ReconcilerOptions,
) Reconciler {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.RefundAttempts <= 0 {
		opts.RefundAttempts = defaultRefundAttempts
	}
	if locker == nil {
		locker = lock.NopLocker{}
	}

	return &reconcilerImpl{
		log:        log.Named("reconciler"),
		transactor: transactor,
		txRepo:     txRepo,
		orgRepo:    orgRepo,
		userRepo:   userRepo,
		sink:       sink,
		notifier:   notifier,
		locker:     locker,
		opts:       opts,
	}
}

func (r *reconcilerImpl) Reconcile(ctx context.Context, ev *paypal.Event) (Outcome, error) {
	switch ev.Kind {
	case paypal.KindSaleCompleted:
		return r.reconcileCharge(ctx, ev, model.TransactionTypeCharge)
	case paypal.KindSaleRefunded:
		return r.reconcileRefund(ctx, ev)
	case paypal.KindLegacyCredit, paypal.KindLegacyRefund:
		return r.reconcileLegacy(ctx, ev)
	default:
		return ignored(ReasonOutOfPolicy, "unsupported event kind %q", ev.Kind), nil
	}
}

func (r *reconcilerImpl) reconcileLegacy(ctx context.Context, ev *paypal.Event) (Outcome, error) {
	if ev.ReceiverID != r.opts.BusinessID {
		r.log.Warn("receiver was not our business id",
			zap.String("receiver_id", ev.ReceiverID),
			zap.String("txn_id", ev.ProviderTxnID),
		)
		return rejected(ReasonReceiverMismatch, "receiver %s", ev.ReceiverID), nil
	}

	if ev.PaymentType == model.IpnPaymentTypeECheck {
		r.log.Warn("got an eCheck payment", zap.String("txn_id", ev.ProviderTxnID))
		return ignored(ReasonOutOfPolicy, "echeck payment"), nil
	}

	if ev.Currency != legacyCurrency {
		r.log.Warn("received a payment not in USD",
			zap.String("txn_id", ev.ProviderTxnID),
			zap.String("currency", ev.Currency),
		)
		return ignored(ReasonOutOfPolicy, "currency %s", ev.Currency), nil
	}

	if ev.Accounts.Empty() {
		return ignored(ReasonOutOfPolicy, "no linked account"), nil
	}

	if !ev.AccountCredit {
		return ignored(ReasonOutOfPolicy, "not an account credit"), nil
	}

	switch ev.PaymentStatus {
	case model.IpnStatusCompleted:
		return r.reconcileCharge(ctx, ev, model.TransactionTypeCredit)
	case model.IpnStatusRefunded:
		return r.reconcileRefund(ctx, ev)
	default:
		return ignored(ReasonOutOfPolicy, "payment status %s", ev.PaymentStatus), nil
	}
}

func (r *reconcilerImpl) reconcileCharge(ctx context.Context, ev *paypal.Event, txType model.TransactionType) (Outcome, error) {
	existing, err := r.txRepo.FindByGatewayID(ctx, model.GatewayPayPal, ev.ProviderTxnID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find transaction %s: %w", ev.ProviderTxnID, err)
	}
	if existing != nil {
		r.log.Info("already processed this transaction", zap.String("gateway_id", ev.ProviderTxnID))
		return ignored(ReasonDuplicateEvent, "transaction %s exists", ev.ProviderTxnID), nil
	}

	if ev.Accounts.Empty() {
		return ignored(ReasonOutOfPolicy, "no linked account"), nil
	}

	tx := &model.Transaction{
		Gateway:           model.GatewayPayPal,
		GatewayID:         ev.ProviderTxnID,
		Amount:            ev.Amount,
		CreationDate:      ev.OccurredAt,
		OrganizationID:    ev.Accounts.OrganizationID,
		UserID:            ev.Accounts.UserID,
		Type:              txType,
		PaymentMethodType: model.PaymentMethodPayPal,
		Details:           ev.ProviderTxnID,
	}

	var credited model.Account
	err = r.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := r.txRepo.Create(ctx, tx); err != nil {
			return err
		}
		if !ev.AccountCredit {
			return nil
		}

		account, err := r.creditAccount(ctx, tx)
		if err != nil {
			return fmt.Errorf("credit account: %w", err)
		}
		credited = account
		return nil
	})

	switch {
	case errors.Is(err, repository.ErrDuplicateGatewayID):
		r.log.Info("lost race creating transaction", zap.String("gateway_id", tx.GatewayID))
		return ignored(ReasonDuplicateEvent, "transaction %s exists", tx.GatewayID), nil
	case errors.Is(err, repository.ErrReferentialViolation):
		r.log.Warn("linked account no longer exists", zap.String("gateway_id", tx.GatewayID))
		return ignored(ReasonReferentialGap, "linked account for %s missing", tx.GatewayID), nil
	case err != nil:
		return Outcome{}, fmt.Errorf("create transaction %s: %w", tx.GatewayID, err)
	}

	if credited != nil {
		metrics.AddCredited(accountLabel(credited), tx.Amount)
		r.notifyCredit(ctx, credited, tx.Amount)
	}

	return processed(), nil
}

// creditAccount resolves the organization first, then the user. A missing
// account is not an error; it may have been deleted since the row was written.
func (r *reconcilerImpl) creditAccount(ctx context.Context, tx *model.Transaction) (model.Account, error) {
	if tx.OrganizationID != nil {
		org, err := r.orgRepo.FindByID(ctx, *tx.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("find organization: %w", err)
		}
		if org != nil {
			ok, err := r.sink.Credit(ctx, org, tx.Amount)
			if err != nil || !ok {
				return nil, err
			}
			if err := r.orgRepo.Replace(ctx, org); err != nil {
				return nil, fmt.Errorf("save organization: %w", err)
			}
			return org, nil
		}
	}

	if tx.UserID != nil {
		user, err := r.userRepo.FindByID(ctx, *tx.UserID)
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		if user != nil {
			ok, err := r.sink.Credit(ctx, user, tx.Amount)
			if err != nil || !ok {
				return nil, err
			}
			if err := r.userRepo.Replace(ctx, user); err != nil {
				return nil, fmt.Errorf("save user: %w", err)
			}
			return user, nil
		}
	}

	return nil, nil
}

func (r *reconcilerImpl) notifyCredit(ctx context.Context, account model.Account, amount decimal.Decimal) {
	email := account.BillingEmailAddress()
	if email == "" {
		return
	}

	if err := r.notifier.SendCreditNotice(ctx, email, amount); err != nil {
		metrics.IncNotifyFailure()
		r.log.Warn("send credit notice failed",
			zap.String("account_id", account.AccountID().String()),
			zap.Error(err),
		)
	}
}

func (r *reconcilerImpl) reconcileRefund(ctx context.Context, ev *paypal.Event) (Outcome, error) {
	existing, err := r.txRepo.FindByGatewayID(ctx, model.GatewayPayPal, ev.ProviderTxnID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find refund %s: %w", ev.ProviderTxnID, err)
	}
	if existing != nil {
		r.log.Info("already processed this refund", zap.String("gateway_id", ev.ProviderTxnID))
		return ignored(ReasonDuplicateEvent, "refund %s exists", ev.ProviderTxnID), nil
	}

	if ev.ParentProviderTxnID == "" {
		return rejected(ReasonParentNotFound, "refund %s has no parent", ev.ProviderTxnID), nil
	}

	lockKey := "paypal:refund:" + ev.ParentProviderTxnID
	token, err := r.locker.TryLock(ctx, lockKey, r.opts.LockTTL)
	if err != nil {
		return Outcome{}, fmt.Errorf("lock parent %s: %w", ev.ParentProviderTxnID, err)
	}
	defer func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			r.log.Warn("unlock parent failed", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	amount := ev.Amount.Abs()
	for attempt := 1; attempt <= r.opts.RefundAttempts; attempt++ {
		outcome, err := r.applyRefund(ctx, ev, amount)
		switch {
		case errors.Is(err, repository.ErrStaleVersion), errors.Is(err, repository.ErrReferentialViolation):
			metrics.IncRefundConflict()
			r.log.Info("refund conflict, retrying",
				zap.String("parent_gateway_id", ev.ParentProviderTxnID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		case errors.Is(err, repository.ErrDuplicateGatewayID):
			r.log.Info("lost race creating refund", zap.String("gateway_id", ev.ProviderTxnID))
			return ignored(ReasonDuplicateEvent, "refund %s exists", ev.ProviderTxnID), nil
		case err != nil:
			return Outcome{}, fmt.Errorf("apply refund %s: %w", ev.ProviderTxnID, err)
		}

		if outcome.Status == StatusProcessed {
			metrics.AddRefunded(amount)
		}
		return outcome, nil
	}

	return Outcome{}, fmt.Errorf("%w: parent %s", ErrConcurrentRefund, ev.ParentProviderTxnID)
}

// applyRefund runs one read-check-write of the parent plus the refund row
// insert in a single database transaction.
func (r *reconcilerImpl) applyRefund(ctx context.Context, ev *paypal.Event, amount decimal.Decimal) (Outcome, error) {
	var outcome Outcome
	err := r.transactor.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := r.txRepo.FindByGatewayID(ctx, model.GatewayPayPal, ev.ProviderTxnID)
		if err != nil {
			return fmt.Errorf("find refund: %w", err)
		}
		if existing != nil {
			outcome = ignored(ReasonDuplicateEvent, "refund %s exists", ev.ProviderTxnID)
			return nil
		}

		parent, err := r.txRepo.FindByGatewayID(ctx, model.GatewayPayPal, ev.ParentProviderTxnID)
		if err != nil {
			return fmt.Errorf("find parent: %w", err)
		}
		if parent == nil {
			r.log.Warn("parent transaction was not found",
				zap.String("gateway_id", ev.ProviderTxnID),
				zap.String("parent_gateway_id", ev.ParentProviderTxnID),
			)
			outcome = rejected(ReasonParentNotFound, "parent %s not found", ev.ParentProviderTxnID)
			return nil
		}

		remaining := parent.RemainingRefundable()
		if parent.IsRefunded() || !amount.IsPositive() || amount.GreaterThan(remaining) {
			outcome = ignored(ReasonOutOfPolicy, "refund %s of %s exceeds remaining %s",
				ev.ProviderTxnID, amount.StringFixed(2), remaining.StringFixed(2))
			return nil
		}

		parent.ApplyRefund(amount)
		if err := r.txRepo.Replace(ctx, parent); err != nil {
			return err
		}

		if ev.TotalRefunded != nil && !ev.TotalRefunded.Equal(parent.RefundedSoFar()) {
			r.log.Warn("refunded total differs from paypal",
				zap.String("parent_gateway_id", parent.GatewayID),
				zap.String("ledger", parent.RefundedSoFar().String()),
				zap.String("paypal", ev.TotalRefunded.String()),
			)
		}

		accounts, err := r.existingAccounts(ctx, ev.Accounts)
		if err != nil {
			return err
		}

		if err := r.txRepo.Create(ctx, &model.Transaction{
			Gateway:           model.GatewayPayPal,
			GatewayID:         ev.ProviderTxnID,
			Amount:            amount,
			CreationDate:      ev.OccurredAt,
			OrganizationID:    accounts.OrganizationID,
			UserID:            accounts.UserID,
			Type:              model.TransactionTypeRefund,
			PaymentMethodType: model.PaymentMethodPayPal,
			Details:           ev.ProviderTxnID,
		}); err != nil {
			return err
		}

		outcome = processed()
		return nil
	})

	return outcome, err
}

// existingAccounts drops ids whose account has been deleted so the refund row
// can still be written.
func (r *reconcilerImpl) existingAccounts(ctx context.Context, ids paypal.AccountIDs) (paypal.AccountIDs, error) {
	var out paypal.AccountIDs

	if ids.OrganizationID != nil {
		org, err := r.orgRepo.FindByID(ctx, *ids.OrganizationID)
		if err != nil {
			return out, fmt.Errorf("find organization: %w", err)
		}
		if org != nil {
			out.OrganizationID = ids.OrganizationID
		}
	}

	if ids.UserID != nil {
		user, err := r.userRepo.FindByID(ctx, *ids.UserID)
		if err != nil {
			return out, fmt.Errorf("find user: %w", err)
		}
		if user != nil {
			out.UserID = ids.UserID
		}
	}

	return out, nil
}

func accountLabel(account model.Account) string {
	switch account.(type) {
	case *model.Organization:
		return "organization"
	case *model.User:
		return "user"
	default:
		return "unknown"
	}
}
