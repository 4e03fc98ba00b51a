package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/matryer/is"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*is.I, context.Context, *gorm.DB) {
	is := is.New(t)
	ctx := context.Background()

	db, err := Connect(NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, db
}

func createDevice(n string) *Device {
	return &Device{
		Name:     "sensor-" + n,
		Location: "server room " + n,
		Active:   true,
	}
}

func createReading(deviceID uint, temperature float64, ts time.Time) *Reading {
	payload := fmt.Sprintf(`{"temperature":%g,"humidity":60,"batteryLevel":85}`, temperature)
	return &Reading{
		DeviceID:  deviceID,
		Values:    datatypes.JSON([]byte(payload)),
		Timestamp: ts,
	}
}
