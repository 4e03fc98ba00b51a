package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ConnectorConfig struct {
	Host     string
	Port     string
	Username string
	DbName   string
	Password string
	SslMode  string
}

func LoadConfigFromEnv() ConnectorConfig {
	getOrDef := func(name, def string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		return def
	}

	return ConnectorConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     getOrDef("POSTGRES_PORT", "5432"),
		Username: os.Getenv("POSTGRES_USER"),
		DbName:   getOrDef("POSTGRES_DBNAME", "fleet"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		SslMode:  getOrDef("POSTGRES_SSLMODE", "disable"),
	}
}

type ConnectorFunc func() (*gorm.DB, error)

func NewSQLiteConnector(ctx context.Context) ConnectorFunc {
	return func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
			Logger:          logger.Default.LogMode(logger.Silent),
			CreateBatchSize: 1000,
		})

		if err == nil {
			db.Exec("PRAGMA foreign_keys = ON")
			sqldb, _ := db.DB()
			sqldb.SetMaxOpenConns(1)
		}

		return db, err
	}
}

func NewPostgreSQLConnector(ctx context.Context, cfg ConnectorConfig) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DbName, cfg.SslMode, cfg.Password)

	log := logging.GetFromContext(ctx)

	return func() (*gorm.DB, error) {
		sublogger := log.With().
			Str("host", cfg.Host).
			Str("database", cfg.DbName).
			Logger()

		sublogger.Info().Msg("connecting to database host")

		db, err := gorm.Open(postgres.Open(dbURI), &gorm.Config{
			Logger: logger.New(
				&logadapter{logger: sublogger},
				logger.Config{
					SlowThreshold:             time.Second,
					LogLevel:                  logger.Warn,
					IgnoreRecordNotFoundError: true,
					Colorful:                  false,
				},
			),
		})
		if err != nil {
			sublogger.Error().Err(err).Msg("failed to connect to database")
			return nil, err
		}

		return db, nil
	}
}

// Connect opens the database connection and migrates the schema.
func Connect(connect ConnectorFunc) (*gorm.DB, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Device{}, &Reading{}, &Alert{})
	if err != nil {
		return nil, err
	}

	return impl, nil
}

// logadapter provides a Printf interface to the gorm logger
// so that we can forward the log data to zerolog
type logadapter struct {
	logger zerolog.Logger
}

func (adapter *logadapter) Printf(format string, args ...interface{}) {
	adapter.logger.Info().Msgf(format, args...)
}
