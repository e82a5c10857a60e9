package repository

import (
	"context"
	"errors"

	"paypal-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrganizationRepository interface {
	// FindByID returns nil, nil when the organization does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	Replace(ctx context.Context, organization *model.Organization) error
}

type organizationRepoImpl struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepoImpl{
		db: db,
	}
}

func (r *organizationRepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var organization model.Organization
	err := lockingConn(ctx, r.db).
		Where("id = ?", id).
		First(&organization).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &organization, nil
}

func (r *organizationRepoImpl) Replace(ctx context.Context, organization *model.Organization) error {
	return conn(ctx, r.db).Omit(clause.Associations).Save(organization).Error
}
