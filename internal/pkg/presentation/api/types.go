package api

import (
	"fmt"
	"time"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type CreateDeviceRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Active   *bool  `json:"active,omitempty"`
}

func (r CreateDeviceRequest) Validate() map[string]string {
	fields := map[string]string{}

	validateLength(fields, "name", r.Name)
	validateLength(fields, "location", r.Location)

	return fields
}

// IsActive defaults to true when the field is omitted.
func (r CreateDeviceRequest) IsActive() bool {
	if r.Active == nil {
		return true
	}
	return *r.Active
}

type CreateReadingRequest struct {
	DeviceID     uint      `json:"deviceID"`
	Temperature  *float64  `json:"temperature"`
	Humidity     *float64  `json:"humidity"`
	BatteryLevel *float64  `json:"batteryLevel"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
}

func (r CreateReadingRequest) Validate() map[string]string {
	fields := map[string]string{}

	if r.DeviceID == 0 {
		fields["deviceID"] = "deviceID must be a positive integer"
	}

	validateRange(fields, "temperature", r.Temperature, -50, 150)
	validateRange(fields, "humidity", r.Humidity, 0, 100)
	validateRange(fields, "batteryLevel", r.BatteryLevel, 0, 100)

	return fields
}

// Values flattens the sensor fields into the payload that is stored
// with the reading.
func (r CreateReadingRequest) Values() map[string]any {
	return map[string]any{
		"temperature":  *r.Temperature,
		"humidity":     *r.Humidity,
		"batteryLevel": *r.BatteryLevel,
	}
}

type NaturalLanguageQueryRequest struct {
	Query string `json:"query"`
}

func (r NaturalLanguageQueryRequest) Validate() map[string]string {
	fields := map[string]string{}

	if len(r.Query) < 3 || len(r.Query) > 500 {
		fields["query"] = "query must be between 3 and 500 characters"
	}

	return fields
}

func validateLength(fields map[string]string, name, value string) {
	if len(value) < 1 || len(value) > 255 {
		fields[name] = fmt.Sprintf("%s must be between 1 and 255 characters", name)
	}
}

func validateRange(fields map[string]string, name string, value *float64, min, max float64) {
	if value == nil {
		fields[name] = fmt.Sprintf("%s is required", name)
		return
	}

	if *value < min || *value > max {
		fields[name] = fmt.Sprintf("%s must be between %g and %g", name, min, max)
	}
}
