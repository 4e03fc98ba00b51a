package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/application/devices"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/application/nlquery"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/application/readings"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/metrics"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/presentation/api/auth"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("iot-fleet-monitor/api")

const (
	defaultLimit = 100
	maxLimit     = 1000
)

func RegisterHandlers(ctx context.Context, router *chi.Mux, signingKey string, deviceSvc devices.DeviceManagement, readingSvc readings.ReadingService, querySvc nlquery.QueryService) (*chi.Mux, error) {

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	log := logging.GetFromContext(ctx)

	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			for _, middleware := range auth.NewAuthenticator(signingKey) {
				r.Use(middleware)
			}

			r.Route("/devices", func(r chi.Router) {
				r.Post("/", createDeviceHandler(log, deviceSvc))
				r.Get("/", queryDevicesHandler(log, deviceSvc))
				r.Get("/{deviceID}", getDeviceHandler(log, deviceSvc))
				r.Put("/{deviceID}", updateDeviceHandler(log, deviceSvc))
				r.Delete("/{deviceID}", deleteDeviceHandler(log, deviceSvc))
				r.Get("/{deviceID}/readings", queryReadingsHandler(log, readingSvc))
			})

			r.Route("/readings", func(r chi.Router) {
				r.Post("/", createReadingHandler(log, readingSvc))
				r.Get("/{readingID}", getReadingHandler(log, readingSvc))
				r.Delete("/{readingID}", deleteReadingHandler(log, readingSvc))
			})

			r.Get("/alerts", queryAlertsHandler(log, readingSvc))

			r.Route("/ai", func(r chi.Router) {
				r.Post("/query", naturalLanguageQueryHandler(log, querySvc))
				r.Get("/examples", queryExamplesHandler(log, querySvc))
			})
		})
	})

	return router, nil
}

// addTraceIDToLogger decorates the logger with the trace id of the
// current span and stores it back in the context for downstream use.
func addTraceIDToLogger(ctx context.Context, span trace.Span, log zerolog.Logger) (context.Context, zerolog.Logger) {
	if traceID := span.SpanContext().TraceID(); traceID.IsValid() {
		log = log.With().Str("traceID", traceID.String()).Logger()
	}
	return logging.NewContextWithLogger(ctx, log), log
}

func respondWithJSON(w http.ResponseWriter, statusCode int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(b)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string, fields map[string]string) {
	respondWithJSON(w, statusCode, ErrorResponse{Error: message, Fields: fields})
}

func uintParam(r *http.Request, name string) (uint, error) {
	value, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	return uint(value), err
}

func pagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return offset, limit
}

func createDeviceHandler(log zerolog.Logger, svc devices.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to read body")
			respondWithError(w, http.StatusBadRequest, "unable to read body", nil)
			return
		}

		req := CreateDeviceRequest{}
		err = json.Unmarshal(body, &req)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to unmarshal body")
			respondWithError(w, http.StatusBadRequest, "invalid json payload", nil)
			return
		}

		if fields := req.Validate(); len(fields) > 0 {
			respondWithError(w, http.StatusBadRequest, "validation failed", fields)
			return
		}

		device, err := svc.Create(ctx, types.Device{
			Name:     req.Name,
			Location: req.Location,
			Active:   req.IsActive(),
		})
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to create device")
			respondWithError(w, http.StatusInternalServerError, "unable to create device", nil)
			return
		}

		requestLogger.Info().Uint("device_id", device.ID).Msg("device created")

		respondWithJSON(w, http.StatusCreated, device)
	}
}

func queryDevicesHandler(log zerolog.Logger, svc devices.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-devices")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		offset, limit := pagination(r)

		collection, err := svc.Query(ctx, offset, limit)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch devices")
			respondWithError(w, http.StatusInternalServerError, "unable to fetch devices", nil)
			return
		}

		respondWithJSON(w, http.StatusOK, collection)
	}
}

func getDeviceHandler(log zerolog.Logger, svc devices.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		deviceID, err := uintParam(r, "deviceID")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "deviceID must be a positive integer", nil)
			return
		}

		device, err := svc.GetByID(ctx, deviceID)
		if errors.Is(err, devices.ErrDeviceNotFound) {
			requestLogger.Debug().Uint("device_id", deviceID).Msg("device not found")
			respondWithError(w, http.StatusNotFound, "device not found", nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("could not fetch device")
			respondWithError(w, http.StatusInternalServerError, "could not fetch device", nil)
			return
		}

		respondWithJSON(w, http.StatusOK, device)
	}
}

func updateDeviceHandler(log zerolog.Logger, svc devices.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		deviceID, err := uintParam(r, "deviceID")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "deviceID must be a positive integer", nil)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to read body")
			respondWithError(w, http.StatusBadRequest, "unable to read body", nil)
			return
		}

		req := CreateDeviceRequest{}
		err = json.Unmarshal(body, &req)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to unmarshal body")
			respondWithError(w, http.StatusBadRequest, "invalid json payload", nil)
			return
		}

		if fields := req.Validate(); len(fields) > 0 {
			respondWithError(w, http.StatusBadRequest, "validation failed", fields)
			return
		}

		device, err := svc.Update(ctx, deviceID, types.Device{
			Name:     req.Name,
			Location: req.Location,
			Active:   req.IsActive(),
		})
		if errors.Is(err, devices.ErrDeviceNotFound) {
			respondWithError(w, http.StatusNotFound, "device not found", nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to update device")
			respondWithError(w, http.StatusInternalServerError, "unable to update device", nil)
			return
		}

		respondWithJSON(w, http.StatusOK, device)
	}
}

func deleteDeviceHandler(log zerolog.Logger, svc devices.DeviceManagement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		deviceID, err := uintParam(r, "deviceID")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "deviceID must be a positive integer", nil)
			return
		}

		err = svc.Delete(ctx, deviceID)
		if errors.Is(err, devices.ErrDeviceNotFound) {
			respondWithError(w, http.StatusNotFound, "device not found", nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to delete device")
			respondWithError(w, http.StatusInternalServerError, "unable to delete device", nil)
			return
		}

		requestLogger.Info().Uint("device_id", deviceID).Msg("device deleted")

		w.WriteHeader(http.StatusNoContent)
	}
}

func createReadingHandler(log zerolog.Logger, svc readings.ReadingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-reading")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to read body")
			respondWithError(w, http.StatusBadRequest, "unable to read body", nil)
			return
		}

		req := CreateReadingRequest{}
		err = json.Unmarshal(body, &req)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to unmarshal body")
			respondWithError(w, http.StatusBadRequest, "invalid json payload", nil)
			return
		}

		if fields := req.Validate(); len(fields) > 0 {
			respondWithError(w, http.StatusBadRequest, "validation failed", fields)
			return
		}

		reading, err := svc.Create(ctx, types.Reading{
			DeviceID:  req.DeviceID,
			Values:    req.Values(),
			Timestamp: req.Timestamp,
		})
		if errors.Is(err, readings.ErrDeviceNotFound) {
			respondWithError(w, http.StatusNotFound, "device not found", nil)
			return
		}
		if errors.Is(err, readings.ErrDeviceNotActive) {
			respondWithError(w, http.StatusBadRequest, "device is not active", nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to store reading")
			respondWithError(w, http.StatusInternalServerError, "unable to store reading", nil)
			return
		}

		respondWithJSON(w, http.StatusCreated, reading)
	}
}

func getReadingHandler(log zerolog.Logger, svc readings.ReadingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-reading")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		readingID, err := uintParam(r, "readingID")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "readingID must be a positive integer", nil)
			return
		}

		reading, err := svc.GetByID(ctx, readingID)
		if errors.Is(err, readings.ErrReadingNotFound) {
			respondWithError(w, http.StatusNotFound, "reading not found", nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("could not fetch reading")
			respondWithError(w, http.StatusInternalServerError, "could not fetch reading", nil)
			return
		}

		respondWithJSON(w, http.StatusOK, reading)
	}
}

func deleteReadingHandler(log zerolog.Logger, svc readings.ReadingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "delete-reading")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		readingID, err := uintParam(r, "readingID")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "readingID must be a positive integer", nil)
			return
		}

		err = svc.Delete(ctx, readingID)
		if errors.Is(err, readings.ErrReadingNotFound) {
			respondWithError(w, http.StatusNotFound, "reading not found", nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to delete reading")
			respondWithError(w, http.StatusInternalServerError, "unable to delete reading", nil)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func queryReadingsHandler(log zerolog.Logger, svc readings.ReadingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-readings")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		deviceID, err := uintParam(r, "deviceID")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "deviceID must be a positive integer", nil)
			return
		}

		_, limit := pagination(r)

		collection, err := svc.QueryByDevice(ctx, deviceID, limit)
		if errors.Is(err, readings.ErrDeviceNotFound) {
			respondWithError(w, http.StatusNotFound, "device not found", nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch readings")
			respondWithError(w, http.StatusInternalServerError, "unable to fetch readings", nil)
			return
		}

		respondWithJSON(w, http.StatusOK, collection)
	}
}

func queryAlertsHandler(log zerolog.Logger, svc readings.ReadingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "query-alerts")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		var deviceID uint64
		if param := r.URL.Query().Get("deviceID"); param != "" {
			deviceID, err = strconv.ParseUint(param, 10, 32)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "deviceID must be a positive integer", nil)
				return
			}
		}

		offset, limit := pagination(r)

		collection, err := svc.QueryAlerts(ctx, uint(deviceID), offset, limit)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch alerts")
			respondWithError(w, http.StatusInternalServerError, "unable to fetch alerts", nil)
			return
		}

		respondWithJSON(w, http.StatusOK, collection)
	}
}

func naturalLanguageQueryHandler(log zerolog.Logger, svc nlquery.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "natural-language-query")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := addTraceIDToLogger(ctx, span, log)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to read body")
			respondWithError(w, http.StatusBadRequest, "unable to read body", nil)
			return
		}

		req := NaturalLanguageQueryRequest{}
		err = json.Unmarshal(body, &req)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to unmarshal body")
			respondWithError(w, http.StatusBadRequest, "invalid json payload", nil)
			return
		}

		if fields := req.Validate(); len(fields) > 0 {
			respondWithError(w, http.StatusBadRequest, "validation failed", fields)
			return
		}

		result, err := svc.Query(ctx, req.Query)
		if errors.Is(err, nlquery.ErrNotConfigured) {
			respondWithError(w, http.StatusServiceUnavailable, "natural language queries are not configured", nil)
			return
		}
		if errors.Is(err, nlquery.ErrUnsafeStatement) || errors.Is(err, nlquery.ErrQueryFailed) {
			requestLogger.Warn().Err(err).Msg("query rejected")
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("query processing failed")
			respondWithError(w, http.StatusInternalServerError, "query processing failed", nil)
			return
		}

		respondWithJSON(w, http.StatusOK, result)
	}
}

func queryExamplesHandler(log zerolog.Logger, svc nlquery.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		_, span := tracer.Start(r.Context(), "query-examples")
		defer span.End()

		respondWithJSON(w, http.StatusOK, map[string]any{"examples": svc.Examples()})
	}
}
