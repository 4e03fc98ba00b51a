package readings

import (
	"context"
	"testing"
	"time"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/messaging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
	"github.com/matryer/is"
	"gorm.io/gorm"
)

func testSetup(t *testing.T) (*is.I, context.Context, ReadingService, *gorm.DB) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.Connect(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	alerts := database.NewAlertRepository(db)
	monitor := NewThresholdMonitor(DefaultMonitorConfig(80), alerts, &messaging.MsgContextMock{})

	svc := New(database.NewReadingRepository(db), database.NewDeviceRepository(db), alerts, monitor)

	return is, ctx, svc, db
}

func addDevice(t *testing.T, db *gorm.DB, active bool) database.Device {
	is := is.New(t)
	device := database.Device{Name: "sensor", Location: "lab", Active: active}
	is.NoErr(database.NewDeviceRepository(db).Save(context.Background(), &device))
	return device
}

func TestCreateReading(t *testing.T) {
	is, ctx, svc, db := testSetup(t)
	device := addDevice(t, db, true)

	created, err := svc.Create(ctx, types.Reading{
		DeviceID:  device.ID,
		Values:    map[string]any{"temperature": 25.5, "humidity": 60.0, "batteryLevel": 85.0},
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	})
	is.NoErr(err)
	is.True(created.ID != 0)

	fetched, err := svc.GetByID(ctx, created.ID)
	is.NoErr(err)
	is.Equal(created.DeviceID, fetched.DeviceID)
	is.Equal(25.5, fetched.Values["temperature"])
}

func TestCreateReadingForUnknownDevice(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	_, err := svc.Create(ctx, types.Reading{DeviceID: 4711, Values: map[string]any{"temperature": 25.5}})
	is.Equal(err, ErrDeviceNotFound)
}

func TestCreateReadingForInactiveDevice(t *testing.T) {
	is, ctx, svc, db := testSetup(t)
	device := addDevice(t, db, false)

	_, err := svc.Create(ctx, types.Reading{DeviceID: device.ID, Values: map[string]any{"temperature": 25.5}})
	is.Equal(err, ErrDeviceNotActive)
}

func TestCreateReadingDefaultsTimestampToNow(t *testing.T) {
	is, ctx, svc, db := testSetup(t)
	device := addDevice(t, db, true)

	before := time.Now().UTC()
	created, err := svc.Create(ctx, types.Reading{DeviceID: device.ID, Values: map[string]any{"temperature": 25.5}})
	is.NoErr(err)

	is.True(!created.Timestamp.Before(before))
	is.True(!created.Timestamp.After(time.Now().UTC()))
}

func TestQueryByDeviceReturnsNewestFirst(t *testing.T) {
	is, ctx, svc, db := testSetup(t)
	device := addDevice(t, db, true)

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, types.Reading{
			DeviceID:  device.ID,
			Values:    map[string]any{"temperature": 20.0 + float64(i)},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		is.NoErr(err)
	}

	collection, err := svc.QueryByDevice(ctx, device.ID, 3)
	is.NoErr(err)
	is.Equal(uint64(3), collection.Count)
	is.True(collection.Data[0].Timestamp.After(collection.Data[1].Timestamp))
}

func TestQueryByUnknownDevice(t *testing.T) {
	is, ctx, svc, _ := testSetup(t)

	_, err := svc.QueryByDevice(ctx, 4711, 10)
	is.Equal(err, ErrDeviceNotFound)
}

func TestDeleteReading(t *testing.T) {
	is, ctx, svc, db := testSetup(t)
	device := addDevice(t, db, true)

	created, err := svc.Create(ctx, types.Reading{DeviceID: device.ID, Values: map[string]any{"temperature": 25.5}})
	is.NoErr(err)

	is.NoErr(svc.Delete(ctx, created.ID))

	_, err = svc.GetByID(ctx, created.ID)
	is.Equal(err, ErrReadingNotFound)

	is.Equal(svc.Delete(ctx, created.ID), ErrReadingNotFound)
}
