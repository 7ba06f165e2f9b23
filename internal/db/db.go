package db

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"universo_lite/internal/models"
)

// Connect opens the Postgres connection and verifies it with a ping.
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return gdb, nil
}

// AutoMigrate creates or updates the schema for every model the server uses.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Cluster{},
		&models.Membership{},
		&models.Domain{},
		&models.ClusterDomain{},
		&models.Resource{},
		&models.DomainResource{},
		&models.ConnectorToken{},
		&models.AuditLog{},
	)
}

// Close releases the underlying connection pool (shutdown and tests).
func Close(gdb *gorm.DB) {
	if gdb == nil {
		return
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
