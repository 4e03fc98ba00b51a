package readings

import (
	"context"
	"io"
	"time"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/messaging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// Rule flags a reading when the named field rises above max or falls
// below min.
type Rule struct {
	Field string   `yaml:"field"`
	Max   *float64 `yaml:"max,omitempty"`
	Min   *float64 `yaml:"min,omitempty"`
}

type MonitorConfig struct {
	Rules []Rule `yaml:"rules"`
}

func NewMonitorConfig(config io.ReadCloser) (*MonitorConfig, error) {
	defer config.Close()

	b, err := io.ReadAll(config)
	if err != nil {
		return nil, err
	}

	cfg := &MonitorConfig{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultMonitorConfig flags readings whose temperature exceeds threshold.
func DefaultMonitorConfig(threshold float64) *MonitorConfig {
	return &MonitorConfig{
		Rules: []Rule{
			{Field: "temperature", Max: &threshold},
		},
	}
}

type ThresholdMonitor struct {
	rules     []Rule
	alerts    database.AlertRepository
	messenger messaging.MsgContext
}

func NewThresholdMonitor(cfg *MonitorConfig, alerts database.AlertRepository, messenger messaging.MsgContext) *ThresholdMonitor {
	return &ThresholdMonitor{
		rules:     cfg.Rules,
		alerts:    alerts,
		messenger: messenger,
	}
}

// CheckReading compares the reading against the configured rules and, on
// exceedance, logs a warning, persists an alert and publishes an event.
// Failures are logged and swallowed, never surfaced to the caller.
func (m *ThresholdMonitor) CheckReading(ctx context.Context, reading types.Reading) {
	log := logging.GetFromContext(ctx)

	for _, rule := range m.rules {
		raw, ok := reading.Values[rule.Field]
		if !ok {
			continue
		}

		value, ok := toFloat(raw)
		if !ok {
			log.Debug().Msgf("field %s on reading %d is not numeric, skipping", rule.Field, reading.ID)
			continue
		}

		var threshold float64

		switch {
		case rule.Max != nil && value > *rule.Max:
			threshold = *rule.Max
		case rule.Min != nil && value < *rule.Min:
			threshold = *rule.Min
		default:
			continue
		}

		log.Warn().
			Uint("device_id", reading.DeviceID).
			Uint("reading_id", reading.ID).
			Str("field", rule.Field).
			Float64("value", value).
			Float64("threshold", threshold).
			Msg("critical reading detected")

		alert := database.Alert{
			ID:         uuid.NewString(),
			DeviceID:   reading.DeviceID,
			ReadingID:  reading.ID,
			Field:      rule.Field,
			Value:      value,
			Threshold:  threshold,
			ObservedAt: time.Now().UTC(),
		}

		err := m.alerts.Add(ctx, &alert)
		if err != nil {
			log.Error().Err(err).Msg("could not store alert")
		}

		err = m.messenger.PublishOnTopic(ctx, &CriticalReadingDetected{
			AlertID:    alert.ID,
			DeviceID:   reading.DeviceID,
			ReadingID:  reading.ID,
			Field:      rule.Field,
			Value:      value,
			Threshold:  threshold,
			ObservedAt: alert.ObservedAt,
		})
		if err != nil {
			log.Error().Err(err).Msg("could not publish alert event")
		}

		metrics.CriticalReadings.Inc()
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
