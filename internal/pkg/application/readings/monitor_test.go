package readings

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/messaging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
	"github.com/matryer/is"
)

func monitorSetup(t *testing.T, cfg *MonitorConfig) (*is.I, context.Context, *ThresholdMonitor, database.AlertRepository, *messaging.MsgContextMock, uint) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.Connect(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	device := database.Device{Name: "sensor", Location: "lab", Active: true}
	is.NoErr(database.NewDeviceRepository(db).Save(ctx, &device))

	alerts := database.NewAlertRepository(db)
	messenger := &messaging.MsgContextMock{}

	return is, ctx, NewThresholdMonitor(cfg, alerts, messenger), alerts, messenger, device.ID
}

func TestReadingAboveThresholdTriggersAlert(t *testing.T) {
	is, ctx, monitor, alerts, messenger, deviceID := monitorSetup(t, DefaultMonitorConfig(80))

	monitor.CheckReading(ctx, types.Reading{
		ID:        1,
		DeviceID:  deviceID,
		Values:    map[string]any{"temperature": 95.0},
		Timestamp: time.Now().UTC(),
	})

	stored, totalCount, err := alerts.Query(ctx, 0, 0, 10)
	is.NoErr(err)
	is.Equal(int64(1), totalCount)
	is.Equal("temperature", stored[0].Field)
	is.Equal(95.0, stored[0].Value)
	is.Equal(80.0, stored[0].Threshold)

	published := messenger.PublishOnTopicCalls()
	is.Equal(1, len(published))
	is.Equal("readings.criticalReadingDetected", published[0].TopicName())

	evt := CriticalReadingDetected{}
	is.NoErr(json.Unmarshal(published[0].Body(), &evt))
	is.Equal(stored[0].ID, evt.AlertID)
	is.Equal(deviceID, evt.DeviceID)
}

func TestReadingAtThresholdDoesNotTrigger(t *testing.T) {
	is, ctx, monitor, alerts, messenger, deviceID := monitorSetup(t, DefaultMonitorConfig(80))

	monitor.CheckReading(ctx, types.Reading{
		ID:       1,
		DeviceID: deviceID,
		Values:   map[string]any{"temperature": 80.0},
	})

	_, totalCount, err := alerts.Query(ctx, 0, 0, 10)
	is.NoErr(err)
	is.Equal(int64(0), totalCount)
	is.Equal(0, len(messenger.PublishOnTopicCalls()))
}

func TestReadingWithoutMonitoredFieldIsIgnored(t *testing.T) {
	is, ctx, monitor, alerts, messenger, deviceID := monitorSetup(t, DefaultMonitorConfig(80))

	monitor.CheckReading(ctx, types.Reading{
		ID:       1,
		DeviceID: deviceID,
		Values:   map[string]any{"humidity": 99.0},
	})

	_, totalCount, err := alerts.Query(ctx, 0, 0, 10)
	is.NoErr(err)
	is.Equal(int64(0), totalCount)
	is.Equal(0, len(messenger.PublishOnTopicCalls()))
}

func TestNonNumericFieldIsIgnored(t *testing.T) {
	is, ctx, monitor, alerts, messenger, deviceID := monitorSetup(t, DefaultMonitorConfig(80))

	monitor.CheckReading(ctx, types.Reading{
		ID:       1,
		DeviceID: deviceID,
		Values:   map[string]any{"temperature": "very hot"},
	})

	_, totalCount, err := alerts.Query(ctx, 0, 0, 10)
	is.NoErr(err)
	is.Equal(int64(0), totalCount)
	is.Equal(0, len(messenger.PublishOnTopicCalls()))
}

func TestMinRuleTriggersOnLowValue(t *testing.T) {
	min := 10.0
	cfg := &MonitorConfig{Rules: []Rule{{Field: "batteryLevel", Min: &min}}}

	is, ctx, monitor, alerts, _, deviceID := monitorSetup(t, cfg)

	monitor.CheckReading(ctx, types.Reading{
		ID:       1,
		DeviceID: deviceID,
		Values:   map[string]any{"batteryLevel": 4.0},
	})

	stored, totalCount, err := alerts.Query(ctx, deviceID, 0, 10)
	is.NoErr(err)
	is.Equal(int64(1), totalCount)
	is.Equal("batteryLevel", stored[0].Field)
	is.Equal(10.0, stored[0].Threshold)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	is, ctx, monitor, alerts, messenger, deviceID := monitorSetup(t, DefaultMonitorConfig(80))
	messenger.PublishOnTopicFunc = func(ctx context.Context, message messaging.TopicMessage) error {
		return io.ErrClosedPipe
	}

	monitor.CheckReading(ctx, types.Reading{
		ID:       1,
		DeviceID: deviceID,
		Values:   map[string]any{"temperature": 95.0},
	})

	// the alert is still persisted even though the event could not be sent
	_, totalCount, err := alerts.Query(ctx, 0, 0, 10)
	is.NoErr(err)
	is.Equal(int64(1), totalCount)
}

func TestMonitorConfigFromYaml(t *testing.T) {
	is := is.New(t)

	yaml := `rules:
  - field: temperature
    max: 80
  - field: batteryLevel
    min: 10
`

	cfg, err := NewMonitorConfig(io.NopCloser(strings.NewReader(yaml)))
	is.NoErr(err)
	is.Equal(2, len(cfg.Rules))
	is.Equal("temperature", cfg.Rules[0].Field)
	is.Equal(80.0, *cfg.Rules[0].Max)
	is.True(cfg.Rules[0].Min == nil)
	is.Equal(10.0, *cfg.Rules[1].Min)
}
