package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/Kappa/models"
	"gorm.io/gorm"
)

// ReportLogRepositoryImpl implements ReportLogRepository interface
type ReportLogRepositoryImpl struct {
	*BaseRepository[models.ReportLog, models.ReportLogFilter]
}

// NewReportLogRepository creates a new report log repository
func NewReportLogRepository(db *gorm.DB) ReportLogRepository {
	return &ReportLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ReportLog, models.ReportLogFilter](db),
	}
}

func (r *ReportLogRepositoryImpl) ListWithAccount(ctx context.Context, limit, offset int) ([]*models.ReportLog, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.ReportLog{}).
		Preload("Account").
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []*models.ReportLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list report logs: %w", err)
	}

	return logs, nil
}

func (r *ReportLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.ReportLogFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

func (r *ReportLogRepositoryImpl) ByFilter(ctx context.Context, filter models.ReportLogFilter, orderBy string, limit, offset int) ([]*models.ReportLog, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ReportLog{})

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

	var rows []*models.ReportLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReportLogRepositoryImpl) Count(ctx context.Context, filter models.ReportLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.ReportLog{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
