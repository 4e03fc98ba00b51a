package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	"gorm.io/gorm"
)

var ErrReadingNotFound = fmt.Errorf("reading not found")

// ReadingRepository stores readings. Readings are immutable, so no update
// method exists.
type ReadingRepository interface {
	Add(ctx context.Context, reading *Reading) error
	GetByID(ctx context.Context, readingID uint) (Reading, error)
	QueryByDevice(ctx context.Context, deviceID uint, limit int) ([]Reading, error)
	Delete(ctx context.Context, readingID uint) error
}

func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{
		db: db,
	}
}

type readingRepository struct {
	db *gorm.DB
}

func (r *readingRepository) Add(ctx context.Context, reading *Reading) error {
	result := r.db.WithContext(ctx).Create(reading)
	return result.Error
}

func (r *readingRepository) GetByID(ctx context.Context, readingID uint) (Reading, error) {
	logger := logging.GetFromContext(ctx)

	var reading = Reading{}

	result := r.db.WithContext(ctx).First(&reading, readingID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Reading{}, ErrReadingNotFound
		}

		logger.Error().Err(result.Error).Msg("gorm error")

		return Reading{}, ErrRepositoryError
	}

	return reading, nil
}

func (r *readingRepository) QueryByDevice(ctx context.Context, deviceID uint, limit int) ([]Reading, error) {
	var readings []Reading

	result := r.db.WithContext(ctx).
		Where(&Reading{DeviceID: deviceID}).
		Order("timestamp desc").
		Limit(limit).
		Find(&readings)

	return readings, result.Error
}

func (r *readingRepository) Delete(ctx context.Context, readingID uint) error {
	reading, err := r.GetByID(ctx, readingID)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Unscoped().Delete(&reading)
	return result.Error
}
