package database

import (
	"fmt"
	"log"

	"sentinel-gateway/internal/config"
	"sentinel-gateway/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitGorm opens the configured database and runs migrations.
func InitGorm(cfg *config.Config) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), gormCfg)
	default:
		log.Fatalf("Unknown DB_DRIVER %q (want postgres or sqlite)", cfg.DBDriver)
	}

	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Printf("Connected to %s database", cfg.DBDriver)

	if err := Migrate(db); err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database migration completed")
	return db
}

// Migrate runs schema migration for all engine entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Bot{},
		&models.Session{},
		&models.Flow{},
		&models.Step{},
		&models.Trigger{},
		&models.Execution{},
		&models.Message{},
	)
}
