package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"paypal-billing/internal/lock"
	"paypal-billing/internal/model"
	"paypal-billing/internal/paypal"
	"paypal-billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const businessID = "MERCHANT-1"

var occurred = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Organization{}, &model.User{}, &model.Transaction{}, &model.Notification{}))
	return db
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendCreditNotice(ctx context.Context, billingEmail string, amount decimal.Decimal) error {
	args := m.Called(ctx, billingEmail, amount)
	return args.Error(0)
}

type mockCreditSink struct {
	mock.Mock
}

func (m *mockCreditSink) Credit(ctx context.Context, account model.Account, amount decimal.Decimal) (bool, error) {
	args := m.Called(ctx, account, amount)
	return args.Bool(0), args.Error(1)
}

type mockPaypalClient struct {
	mock.Mock
}

func (m *mockPaypalClient) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	args := m.Called(ctx, headers, body)
	return args.Error(0)
}

type mockIpnClient struct {
	mock.Mock
}

func (m *mockIpnClient) VerifyIPN(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

// staleReadRepo answers "not found" for the first misses lookups, the way a
// concurrent delivery sees the ledger just before the winner commits.
type staleReadRepo struct {
	repository.TransactionRepository
	misses int
}

func (r *staleReadRepo) FindByGatewayID(ctx context.Context, gateway model.GatewayType, gatewayID string) (*model.Transaction, error) {
	if r.misses > 0 {
		r.misses--
		return nil, nil
	}
	return r.TransactionRepository.FindByGatewayID(ctx, gateway, gatewayID)
}

// conflictingRepo fails the first conflicts replaces with a version mismatch.
type conflictingRepo struct {
	repository.TransactionRepository
	conflicts int
	replaces  int
}

func (r *conflictingRepo) Replace(ctx context.Context, transaction *model.Transaction) error {
	r.replaces++
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrStaleVersion
	}
	return r.TransactionRepository.Replace(ctx, transaction)
}

type recordingLocker struct {
	locked   []string
	unlocked []string
	err      error
}

func (l *recordingLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.locked = append(l.locked, key)
	return "token-" + key, nil
}

func (l *recordingLocker) Unlock(_ context.Context, key, token string) error {
	l.unlocked = append(l.unlocked, key+"="+token)
	return nil
}

type fixture struct {
	db       *gorm.DB
	txRepo   repository.TransactionRepository
	orgRepo  repository.OrganizationRepository
	userRepo repository.UserRepository
	notifier *mockNotifier
	sink     AccountCreditSink
	locker   lock.Locker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	return &fixture{
		db:       db,
		txRepo:   repository.NewTransactionRepository(db),
		orgRepo:  repository.NewOrganizationRepository(db),
		userRepo: repository.NewUserRepository(db),
		notifier: &mockNotifier{},
		sink:     NewBalanceCreditSink(),
		locker:   lock.NopLocker{},
	}
}

func (f *fixture) reconciler() Reconciler {
	return NewReconciler(
		zap.NewNop(),
		repository.NewTransactor(f.db),
		f.txRepo,
		f.orgRepo,
		f.userRepo,
		f.sink,
		f.notifier,
		f.locker,
		ReconcilerOptions{BusinessID: businessID},
	)
}

func (f *fixture) seedOrganization(t *testing.T) *model.Organization {
	t.Helper()
	org := &model.Organization{ID: uuid.New(), Name: "Acme", BillingEmail: " Billing@Acme.test "}
	require.NoError(t, f.db.Create(org).Error)
	return org
}

func (f *fixture) seedUser(t *testing.T) *model.User {
	t.Helper()
	user := &model.User{ID: uuid.New(), Name: "Jane", Email: "jane@example.test"}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) transaction(t *testing.T, gatewayID string) *model.Transaction {
	t.Helper()
	tx, err := f.txRepo.FindByGatewayID(context.Background(), model.GatewayPayPal, gatewayID)
	require.NoError(t, err)
	return tx
}

func (f *fixture) countTransactions(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&model.Transaction{}).Count(&count).Error)
	return count
}

func (f *fixture) organizationCredit(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var org model.Organization
	require.NoError(t, f.db.First(&org, "id = ?", id).Error)
	return org.Credit
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decEq(want string) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(dec(want)) })
}

func orgIDs(id uuid.UUID) paypal.AccountIDs {
	return paypal.AccountIDs{OrganizationID: &id}
}

func saleCompleted(id, amount string, accounts paypal.AccountIDs, credit bool) *paypal.Event {
	return &paypal.Event{
		Kind:          paypal.KindSaleCompleted,
		Source:        paypal.SourceWebhook,
		EventID:       "WH-" + id,
		ProviderTxnID: id,
		Amount:        dec(amount),
		OccurredAt:    occurred,
		Accounts:      accounts,
		AccountCredit: credit,
		Currency:      "USD",
	}
}

func saleRefunded(id, parent, amount string, accounts paypal.AccountIDs) *paypal.Event {
	return &paypal.Event{
		Kind:                paypal.KindSaleRefunded,
		Source:              paypal.SourceWebhook,
		EventID:             "WH-" + id,
		ProviderTxnID:       id,
		ParentProviderTxnID: parent,
		Amount:              dec(amount),
		OccurredAt:          occurred.Add(time.Hour),
		Accounts:            accounts,
		Currency:            "USD",
	}
}

func legacy(status, id, parent, amount string, accounts paypal.AccountIDs) *paypal.Event {
	kind := paypal.KindLegacyCredit
	if status == model.IpnStatusRefunded {
		kind = paypal.KindLegacyRefund
	}
	return &paypal.Event{
		Kind:                kind,
		Source:              paypal.SourceIPN,
		ProviderTxnID:       id,
		ParentProviderTxnID: parent,
		Amount:              dec(amount),
		OccurredAt:          occurred,
		Accounts:            accounts,
		AccountCredit:       true,
		PaymentStatus:       status,
		TransactionType:     model.IpnTxnTypeWebAccept,
		ReceiverID:          businessID,
		Currency:            "USD",
		PaymentType:         "instant",
	}
}
