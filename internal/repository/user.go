package repository

import (
	"context"
	"errors"

	"paypal-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	// FindByID returns nil, nil when the user does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Replace(ctx context.Context, user *model.User) error
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

func (r *userRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := lockingConn(ctx, r.db).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) Replace(ctx context.Context, user *model.User) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(user).Error
}
