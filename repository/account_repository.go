// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/utils"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository interface
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, models.AccountFilter]
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Account, models.AccountFilter](db),
	}
}

// ByEmail retrieves an account by exact email match
func (r *AccountRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Account, error) {
	filter := models.AccountFilter{Email: &email}
	accounts, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}

	if len(accounts) == 0 {
		return nil, nil
	}

	return accounts[0], nil
}

// UpdatePassword replaces the password hash of an account
func (r *AccountRepositoryImpl) UpdatePassword(ctx context.Context, accountID uint, passwordHash string) error {
	return r.updateColumns(ctx, accountID, map[string]any{"password_hash": passwordHash})
}

// UpdateProfile writes only the profile fields present in update
func (r *AccountRepositoryImpl) UpdateProfile(ctx context.Context, accountID uint, update models.ProfileUpdate) error {
	cols := update.Columns()
	if len(cols) == 0 {
		return nil
	}
	return r.updateColumns(ctx, accountID, cols)
}

func (r *AccountRepositoryImpl) MarkPasswordChanged(ctx context.Context, accountID uint) error {
	return r.updateColumns(ctx, accountID, map[string]any{"has_changed_password": true})
}

func (r *AccountRepositoryImpl) MarkTermsAccepted(ctx context.Context, accountID uint) error {
	return r.updateColumns(ctx, accountID, map[string]any{"has_accepted_terms": true})
}

func (r *AccountRepositoryImpl) SetAdmin(ctx context.Context, accountID uint) error {
	return r.updateColumns(ctx, accountID, map[string]any{"is_admin": true})
}

// IncrementInvoiceCounter atomically bumps the counter and returns the new value
func (r *AccountRepositoryImpl) IncrementInvoiceCounter(ctx context.Context, accountID uint) (int64, error) {
	db := r.getDB(ctx)

	var counter int64
	err := db.Raw(
		"UPDATE accounts SET invoice_counter = invoice_counter + 1, updated_at = ? WHERE id = ? RETURNING invoice_counter",
		utils.UTCNow(), accountID,
	).Scan(&counter).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment invoice counter: %w", err)
	}
	if counter == 0 {
		return 0, fmt.Errorf("failed to increment invoice counter: %w", gorm.ErrRecordNotFound)
	}

	return counter, nil
}

// DeleteByID hard deletes an account. Reports false when nothing was deleted.
func (r *AccountRepositoryImpl) DeleteByID(ctx context.Context, accountID uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Delete(&models.Account{}, accountID)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete account: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}

func (r *AccountRepositoryImpl) updateColumns(ctx context.Context, accountID uint, cols map[string]any) error {
	db := r.getDB(ctx)

	cols["updated_at"] = utils.UTCNow()
	res := db.Model(&models.Account{}).Where("id = ?", accountID).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("failed to update account %d: %w", accountID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update account %d: %w", accountID, gorm.ErrRecordNotFound)
	}

	return nil
}

// IsNotFound reports whether err wraps gorm.ErrRecordNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (r *AccountRepositoryImpl) applyFilter(query *gorm.DB, filter models.AccountFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.IsAdmin != nil {
		query = query.Where("is_admin = ?", *filter.IsAdmin)
	}
	if filter.HasChangedPassword != nil {
		query = query.Where("has_changed_password = ?", *filter.HasChangedPassword)
	}
	if filter.HasAcceptedTerms != nil {
		query = query.Where("has_accepted_terms = ?", *filter.HasAcceptedTerms)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves accounts based on filter criteria
func (r *AccountRepositoryImpl) ByFilter(ctx context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Account{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Account
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of accounts matching the filter
func (r *AccountRepositoryImpl) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Account{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
