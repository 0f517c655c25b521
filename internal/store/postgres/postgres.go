package pgstore

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

// New opens the postgres connection and exits the process when it cannot.
func New(appConfig *config.AppConfig, logger *logger.Logger) *gorm.DB {
	db, err := connectPostgres(appConfig)
	if err != nil {
		logger.Fatal("failed to connect to postgres", map[string]string{
			"error": err.Error(),
		})
	}

	logger.Info("database connected", map[string]string{
		"host": appConfig.Postgres.Host,
		"name": appConfig.Postgres.Name,
	})
	return db
}

func connectPostgres(appConfig *config.AppConfig) (*gorm.DB, error) {
	ds := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		appConfig.Postgres.Host,
		appConfig.Postgres.User,
		appConfig.Postgres.Pass,
		appConfig.Postgres.Name,
		appConfig.Postgres.Port,
		appConfig.Postgres.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(ds),
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				SingularTable: false,
			},
			TranslateError: true,
		})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
