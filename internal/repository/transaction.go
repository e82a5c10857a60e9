package repository

import (
	"context"
	"errors"
	"fmt"

	"paypal-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository interface {
	// FindByGatewayID returns nil, nil when no row exists.
	FindByGatewayID(ctx context.Context, gateway model.GatewayType, gatewayID string) (*model.Transaction, error)
	Create(ctx context.Context, transaction *model.Transaction) error
	// Replace overwrites the mutable columns only if the stored version still
	// equals transaction.Version, then bumps the version. A miss returns
	// ErrStaleVersion.
	Replace(ctx context.Context, transaction *model.Transaction) error
}

type transactionRepoImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepoImpl{
		db: db,
	}
}

func (r *transactionRepoImpl) FindByGatewayID(ctx context.Context, gateway model.GatewayType, gatewayID string) (*model.Transaction, error) {
	var transaction model.Transaction
	err := conn(ctx, r.db).
		Where("gateway = ? AND gateway_id = ?", gateway, gatewayID).
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &transaction, nil
}

func (r *transactionRepoImpl) Create(ctx context.Context, transaction *model.Transaction) error {
	if transaction.ID == uuid.Nil {
		transaction.ID = uuid.New()
	}

	err := conn(ctx, r.db).Omit(clause.Associations).Create(transaction).Error
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		return fmt.Errorf("%w: %s/%s", ErrDuplicateGatewayID, transaction.Gateway, transaction.GatewayID)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %s/%s", ErrReferentialViolation, transaction.Gateway, transaction.GatewayID)
	default:
		return err
	}
}

func (r *transactionRepoImpl) Replace(ctx context.Context, transaction *model.Transaction) error {
	result := conn(ctx, r.db).
		Model(&model.Transaction{}).
		Where("id = ? AND version = ?", transaction.ID, transaction.Version).
		Updates(map[string]interface{}{
			"amount":          transaction.Amount,
			"organization_id": transaction.OrganizationID,
			"user_id":         transaction.UserID,
			"details":         transaction.Details,
			"refunded_amount": transaction.RefundedAmount,
			"refunded":        transaction.Refunded,
			"version":         gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrStaleVersion, transaction.GatewayID)
	}

	transaction.Version++
	return nil
}
