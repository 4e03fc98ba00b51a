package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/application/devices"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/application/nlquery"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/application/readings"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/messaging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/router"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/tracing"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/presentation/api"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const serviceName string = "iot-fleet-monitor"

func main() {
	_ = godotenv.Load()

	serviceVersion := version()

	ctx, logger := logging.NewLogger(context.Background(), serviceName, serviceVersion)
	logger.Info().Msg("starting up ...")

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	exitIf(err, logger, "failed to init tracing")
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(newConnector(ctx))
	exitIf(err, logger, "could not create or connect to database")

	messenger, err := messaging.Initialize(ctx, messaging.LoadConfigFromEnv())
	exitIf(err, logger, "failed to init messenger")
	defer messenger.Close()

	monitorCfg, err := newMonitorConfig()
	exitIf(err, logger, "could not load monitor configuration")

	alerts := database.NewAlertRepository(db)
	monitor := readings.NewThresholdMonitor(monitorCfg, alerts, messenger)

	deviceSvc := devices.New(database.NewDeviceRepository(db))
	readingSvc := readings.New(database.NewReadingRepository(db), database.NewDeviceRepository(db), alerts, monitor)
	querySvc := newQueryService(logger, db)

	mux, err := api.RegisterHandlers(ctx, router.New(serviceName), os.Getenv("JWT_SIGNING_KEY"), deviceSvc, readingSvc, querySvc)
	exitIf(err, logger, "failed to register handlers")

	listenAddress := env("LISTEN_ADDRESS", "0.0.0.0")
	port := env("SERVICE_PORT", "8080")
	server := &http.Server{Addr: listenAddress + ":" + port, Handler: mux}

	go func() {
		logger.Info().Str("port", port).Msg("listening for incoming connections")

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to listen for connections")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to shut down gracefully")
	}
}

// newConnector connects to postgres when POSTGRES_HOST is set and falls
// back to an in-memory sqlite store for local development.
func newConnector(ctx context.Context) database.ConnectorFunc {
	if os.Getenv("POSTGRES_HOST") != "" {
		return database.NewPostgreSQLConnector(ctx, database.LoadConfigFromEnv())
	}
	return database.NewSQLiteConnector(ctx)
}

func newMonitorConfig() (*readings.MonitorConfig, error) {
	if configFile := os.Getenv("MONITOR_CONFIG_FILE"); configFile != "" {
		f, err := os.Open(configFile)
		if err != nil {
			return nil, err
		}
		return readings.NewMonitorConfig(f)
	}

	threshold := 80.0
	if value := os.Getenv("CRITICAL_TEMP_THRESHOLD"); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("CRITICAL_TEMP_THRESHOLD is not a number: %w", err)
		}
		threshold = parsed
	}

	return readings.DefaultMonitorConfig(threshold), nil
}

func newQueryService(logger zerolog.Logger, db *gorm.DB) nlquery.QueryService {
	cfg := nlquery.LoadConfigFromEnv()

	var completer nlquery.ChatCompleter
	if cfg.APIKey != "" {
		completer = nlquery.NewOpenAICompleter(cfg)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY is not set, natural language queries are disabled")
	}

	return nlquery.New(completer, database.NewRawQuerier(db), cfg.ValidateWithLLM)
}

func env(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Fatal().Err(err).Msg(msg)
	}
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	buildSettings := buildInfo.Settings
	infoMap := map[string]string{}
	for _, s := range buildSettings {
		infoMap[s.Key] = s.Value
	}

	sha := infoMap["vcs.revision"]
	if infoMap["vcs.modified"] == "true" {
		sha += "+"
	}

	return sha
}
