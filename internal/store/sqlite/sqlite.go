package sqlitestore

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/labomba/deposit-settlement/internal/model"
)

// NewInMemory returns a migrated in-memory database. A single connection keeps
// the schema alive and serializes writers the way row locks do in postgres.
func NewInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.DepositClaim{}, &model.WithdrawalRequest{}); err != nil {
		return nil, err
	}
	return db, nil
}
