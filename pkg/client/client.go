package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// FleetMonitorClient is a typed client for the fleet monitor REST API.
type FleetMonitorClient interface {
	CreateDevice(ctx context.Context, device types.Device) (types.Device, error)
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
	CreateReading(ctx context.Context, reading types.Reading) (types.Reading, error)
	GetAlerts(ctx context.Context) (types.Collection[types.Alert], error)
}

var tracer = otel.Tracer("fleet-monitor-client")

func New(url, authToken string) FleetMonitorClient {
	return &fleetMonitorClient{
		url:       url,
		authToken: authToken,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type fleetMonitorClient struct {
	url        string
	authToken  string
	httpClient http.Client
}

func (c *fleetMonitorClient) CreateDevice(ctx context.Context, device types.Device) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "create-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result := types.Device{}
	err = c.post(ctx, "/api/v1/devices", device, &result)
	return result, err
}

func (c *fleetMonitorClient) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-device")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result := types.Device{}
	err = c.get(ctx, fmt.Sprintf("/api/v1/devices/%d", deviceID), &result)
	return result, err
}

func (c *fleetMonitorClient) CreateReading(ctx context.Context, reading types.Reading) (types.Reading, error) {
	var err error
	ctx, span := tracer.Start(ctx, "create-reading")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	payload := map[string]any{
		"deviceID":     reading.DeviceID,
		"temperature":  reading.Values["temperature"],
		"humidity":     reading.Values["humidity"],
		"batteryLevel": reading.Values["batteryLevel"],
	}
	if !reading.Timestamp.IsZero() {
		payload["timestamp"] = reading.Timestamp
	}

	result := types.Reading{}
	err = c.post(ctx, "/api/v1/readings", payload, &result)
	return result, err
}

func (c *fleetMonitorClient) GetAlerts(ctx context.Context) (types.Collection[types.Alert], error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-alerts")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result := types.Collection[types.Alert]{}
	err = c.get(ctx, "/api/v1/alerts", &result)
	return result, err
}

func (c *fleetMonitorClient) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	return c.do(req, http.StatusOK, result)
}

func (c *fleetMonitorClient) post(ctx context.Context, path string, body any, result any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")

	return c.do(req, http.StatusCreated, result)
}

func (c *fleetMonitorClient) do(req *http.Request, expectedStatus int, result any) error {
	if c.authToken != "" {
		req.Header.Add("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(respBody))
	}

	return json.Unmarshal(respBody, result)
}
