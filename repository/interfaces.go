// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/Kappa/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// Transactor runs fn inside a single database transaction
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// AccountRepository defines operations for accounts
type AccountRepository interface {
	Repository[models.Account, models.AccountFilter]
	ByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdatePassword(ctx context.Context, accountID uint, passwordHash string) error
	UpdateProfile(ctx context.Context, accountID uint, update models.ProfileUpdate) error
	MarkPasswordChanged(ctx context.Context, accountID uint) error
	MarkTermsAccepted(ctx context.Context, accountID uint) error
	SetAdmin(ctx context.Context, accountID uint) error
	// IncrementInvoiceCounter bumps the counter by one and returns the new value
	IncrementInvoiceCounter(ctx context.Context, accountID uint) (int64, error)
	DeleteByID(ctx context.Context, accountID uint) (bool, error)
}

// ReportLogRepository defines operations for generated report logs
type ReportLogRepository interface {
	Repository[models.ReportLog, models.ReportLogFilter]
	// ListWithAccount returns entries newest first with the owning account preloaded.
	// limit <= 0 returns every entry.
	ListWithAccount(ctx context.Context, limit, offset int) ([]*models.ReportLog, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.AuditLog, error)
}
