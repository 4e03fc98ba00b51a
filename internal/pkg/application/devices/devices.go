package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
	"github.com/samber/lo"
)

var ErrDeviceNotFound = fmt.Errorf("device not found")

type DeviceManagement interface {
	Create(ctx context.Context, device types.Device) (types.Device, error)
	GetByID(ctx context.Context, deviceID uint) (types.Device, error)
	Query(ctx context.Context, offset, limit int) (types.Collection[types.Device], error)
	Update(ctx context.Context, deviceID uint, device types.Device) (types.Device, error)
	Delete(ctx context.Context, deviceID uint) error
}

func New(storage database.DeviceRepository) DeviceManagement {
	return service{
		storage: storage,
	}
}

type service struct {
	storage database.DeviceRepository
}

func (s service) Create(ctx context.Context, device types.Device) (types.Device, error) {
	d := database.Device{
		Name:     device.Name,
		Location: device.Location,
		Active:   device.Active,
	}

	err := s.storage.Save(ctx, &d)
	if err != nil {
		return types.Device{}, err
	}

	return toDevice(d), nil
}

func (s service) GetByID(ctx context.Context, deviceID uint) (types.Device, error) {
	d, err := s.storage.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return types.Device{}, ErrDeviceNotFound
		}
		return types.Device{}, err
	}

	return toDevice(d), nil
}

func (s service) Query(ctx context.Context, offset, limit int) (types.Collection[types.Device], error) {
	fromDb, totalCount, err := s.storage.Query(ctx, offset, limit)
	if err != nil {
		return types.Collection[types.Device]{}, err
	}

	data := lo.Map(fromDb, func(d database.Device, _ int) types.Device {
		return toDevice(d)
	})

	return types.Collection[types.Device]{
		Data:       data,
		Count:      uint64(len(data)),
		Offset:     uint64(offset),
		Limit:      uint64(limit),
		TotalCount: uint64(totalCount),
	}, nil
}

func (s service) Update(ctx context.Context, deviceID uint, device types.Device) (types.Device, error) {
	d, err := s.storage.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return types.Device{}, ErrDeviceNotFound
		}
		return types.Device{}, err
	}

	d.Name = device.Name
	d.Location = device.Location
	d.Active = device.Active

	err = s.storage.Save(ctx, &d)
	if err != nil {
		return types.Device{}, err
	}

	return toDevice(d), nil
}

func (s service) Delete(ctx context.Context, deviceID uint) error {
	err := s.storage.Delete(ctx, deviceID)
	if errors.Is(err, database.ErrDeviceNotFound) {
		return ErrDeviceNotFound
	}

	return err
}

func toDevice(d database.Device) types.Device {
	return types.Device{
		ID:       d.ID,
		Name:     d.Name,
		Location: d.Location,
		Active:   d.Active,
	}
}
