package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAddAndQueryAlerts(t *testing.T) {
	is, ctx, db := setup(t)
	devices := NewDeviceRepository(db)
	alerts := NewAlertRepository(db)

	d1 := createDevice("1")
	d2 := createDevice("2")
	is.NoErr(devices.Save(ctx, d1))
	is.NoErr(devices.Save(ctx, d2))

	now := time.Now().UTC()

	addAlert := func(deviceID uint, observedAt time.Time) {
		is.NoErr(alerts.Add(ctx, &Alert{
			ID:         uuid.NewString(),
			DeviceID:   deviceID,
			Field:      "temperature",
			Value:      92.5,
			Threshold:  80,
			ObservedAt: observedAt,
		}))
	}

	addAlert(d1.ID, now.Add(-2*time.Minute))
	addAlert(d1.ID, now)
	addAlert(d2.ID, now.Add(-time.Minute))

	all, totalCount, err := alerts.Query(ctx, 0, 0, 10)
	is.NoErr(err)
	is.Equal(3, len(all))
	is.Equal(int64(3), totalCount)
	is.True(!all[0].ObservedAt.Before(all[1].ObservedAt))

	forDevice, totalCount, err := alerts.Query(ctx, d1.ID, 0, 10)
	is.NoErr(err)
	is.Equal(2, len(forDevice))
	is.Equal(int64(2), totalCount)
}
