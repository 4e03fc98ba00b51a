package database

import (
	"context"

	"gorm.io/gorm"
)

// AlertRepository stores threshold alerts. Alerts are only ever written by
// the threshold monitor.
type AlertRepository interface {
	Add(ctx context.Context, alert *Alert) error
	Query(ctx context.Context, deviceID uint, offset, limit int) ([]Alert, int64, error)
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{
		db: db,
	}
}

type alertRepository struct {
	db *gorm.DB
}

func (a *alertRepository) Add(ctx context.Context, alert *Alert) error {
	result := a.db.WithContext(ctx).Create(alert)
	return result.Error
}

func (a *alertRepository) Query(ctx context.Context, deviceID uint, offset, limit int) ([]Alert, int64, error) {
	var alerts []Alert
	var totalCount int64

	countQuery := a.db.WithContext(ctx).Model(&Alert{})
	findQuery := a.db.WithContext(ctx)
	if deviceID != 0 {
		countQuery = countQuery.Where("device_id = ?", deviceID)
		findQuery = findQuery.Where("device_id = ?", deviceID)
	}

	err := countQuery.Count(&totalCount).Error
	if err != nil {
		return nil, 0, err
	}

	result := findQuery.
		Order("observed_at desc").
		Offset(offset).
		Limit(limit).
		Find(&alerts)

	return alerts, totalCount, result.Error
}
