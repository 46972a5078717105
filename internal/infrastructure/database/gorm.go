package database

import (
	"fmt"
	"time"

	"user-api/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogSQL   bool
}

// DSN renders the postgres connection string
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s connect_timeout=10",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

func NewConnection(config Config) (*gorm.DB, error) {
	logger.Debug("Connecting to postgres at %s:%d/%s (sslmode=%s)",
		config.Host, config.Port, config.DBName, config.SSLMode)

	logLevel := gormlogger.Warn
	if config.LogSQL {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
