package readings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
	"github.com/samber/lo"
)

var ErrDeviceNotFound = fmt.Errorf("device not found")
var ErrDeviceNotActive = fmt.Errorf("device is not active")
var ErrReadingNotFound = fmt.Errorf("reading not found")

type ReadingService interface {
	Create(ctx context.Context, reading types.Reading) (types.Reading, error)
	GetByID(ctx context.Context, readingID uint) (types.Reading, error)
	QueryByDevice(ctx context.Context, deviceID uint, limit int) (types.Collection[types.Reading], error)
	Delete(ctx context.Context, readingID uint) error

	QueryAlerts(ctx context.Context, deviceID uint, offset, limit int) (types.Collection[types.Alert], error)
}

func New(readings database.ReadingRepository, devices database.DeviceRepository, alerts database.AlertRepository, monitor *ThresholdMonitor) ReadingService {
	return service{
		readings: readings,
		devices:  devices,
		alerts:   alerts,
		monitor:  monitor,
	}
}

type service struct {
	readings database.ReadingRepository
	devices  database.DeviceRepository
	alerts   database.AlertRepository
	monitor  *ThresholdMonitor
}

func (s service) Create(ctx context.Context, reading types.Reading) (types.Reading, error) {
	device, err := s.devices.GetByID(ctx, reading.DeviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return types.Reading{}, ErrDeviceNotFound
		}
		return types.Reading{}, err
	}

	if !device.Active {
		return types.Reading{}, ErrDeviceNotActive
	}

	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	values, err := json.Marshal(reading.Values)
	if err != nil {
		return types.Reading{}, err
	}

	r := database.Reading{
		DeviceID:  reading.DeviceID,
		Values:    values,
		Timestamp: reading.Timestamp,
	}

	err = s.readings.Add(ctx, &r)
	if err != nil {
		return types.Reading{}, err
	}

	metrics.ReadingsStored.Inc()

	stored := toReading(r)

	// the threshold check must never block or fail the write path
	go s.monitor.CheckReading(context.WithoutCancel(ctx), stored)

	return stored, nil
}

func (s service) GetByID(ctx context.Context, readingID uint) (types.Reading, error) {
	r, err := s.readings.GetByID(ctx, readingID)
	if err != nil {
		if errors.Is(err, database.ErrReadingNotFound) {
			return types.Reading{}, ErrReadingNotFound
		}
		return types.Reading{}, err
	}

	return toReading(r), nil
}

func (s service) QueryByDevice(ctx context.Context, deviceID uint, limit int) (types.Collection[types.Reading], error) {
	_, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, database.ErrDeviceNotFound) {
			return types.Collection[types.Reading]{}, ErrDeviceNotFound
		}
		return types.Collection[types.Reading]{}, err
	}

	fromDb, err := s.readings.QueryByDevice(ctx, deviceID, limit)
	if err != nil {
		return types.Collection[types.Reading]{}, err
	}

	data := lo.Map(fromDb, func(r database.Reading, _ int) types.Reading {
		return toReading(r)
	})

	return types.Collection[types.Reading]{
		Data:       data,
		Count:      uint64(len(data)),
		Limit:      uint64(limit),
		TotalCount: uint64(len(data)),
	}, nil
}

func (s service) Delete(ctx context.Context, readingID uint) error {
	err := s.readings.Delete(ctx, readingID)
	if errors.Is(err, database.ErrReadingNotFound) {
		return ErrReadingNotFound
	}

	return err
}

func (s service) QueryAlerts(ctx context.Context, deviceID uint, offset, limit int) (types.Collection[types.Alert], error) {
	fromDb, totalCount, err := s.alerts.Query(ctx, deviceID, offset, limit)
	if err != nil {
		return types.Collection[types.Alert]{}, err
	}

	data := lo.Map(fromDb, func(a database.Alert, _ int) types.Alert {
		return types.Alert{
			ID:         a.ID,
			DeviceID:   a.DeviceID,
			ReadingID:  a.ReadingID,
			Field:      a.Field,
			Value:      a.Value,
			Threshold:  a.Threshold,
			ObservedAt: a.ObservedAt,
		}
	})

	return types.Collection[types.Alert]{
		Data:       data,
		Count:      uint64(len(data)),
		Offset:     uint64(offset),
		Limit:      uint64(limit),
		TotalCount: uint64(totalCount),
	}, nil
}

func toReading(r database.Reading) types.Reading {
	values := map[string]any{}
	_ = json.Unmarshal(r.Values, &values)

	return types.Reading{
		ID:        r.ID,
		DeviceID:  r.DeviceID,
		Values:    values,
		Timestamp: r.Timestamp,
	}
}
