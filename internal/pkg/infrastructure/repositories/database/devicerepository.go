package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	"gorm.io/gorm"
)

var ErrDeviceNotFound = fmt.Errorf("device not found")
var ErrRepositoryError = fmt.Errorf("could not fetch data from repository")

type DeviceRepository interface {
	Save(ctx context.Context, device *Device) error
	GetByID(ctx context.Context, deviceID uint) (Device, error)
	Query(ctx context.Context, offset, limit int) ([]Device, int64, error)
	Delete(ctx context.Context, deviceID uint) error
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{
		db: db,
	}
}

type deviceRepository struct {
	db *gorm.DB
}

func (d *deviceRepository) Save(ctx context.Context, device *Device) error {
	result := d.db.WithContext(ctx).Save(device)
	return result.Error
}

func (d *deviceRepository) GetByID(ctx context.Context, deviceID uint) (Device, error) {
	logger := logging.GetFromContext(ctx)

	var device = Device{}

	result := d.db.WithContext(ctx).First(&device, deviceID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Device{}, ErrDeviceNotFound
		}

		logger.Error().Err(result.Error).Msg("gorm error")

		return Device{}, ErrRepositoryError
	}

	return device, nil
}

func (d *deviceRepository) Query(ctx context.Context, offset, limit int) ([]Device, int64, error) {
	var devices []Device
	var totalCount int64

	err := d.db.WithContext(ctx).Model(&Device{}).Count(&totalCount).Error
	if err != nil {
		return nil, 0, err
	}

	result := d.db.WithContext(ctx).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&devices)

	return devices, totalCount, result.Error
}

func (d *deviceRepository) Delete(ctx context.Context, deviceID uint) error {
	device, err := d.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}

	// hard delete so that the cascade on readings and alerts fires
	result := d.db.WithContext(ctx).Unscoped().Delete(&device)
	return result.Error
}
