package database

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"looprec/backend/internal/config"
	"looprec/backend/internal/models"
)

// DB is nil when the service runs without a database.
var DB *gorm.DB

func InitDatabase(cfg *config.Config, log *zap.Logger) error {
	var err error

	dsn := cfg.GetDSN()

	level := logger.Warn
	if cfg.Server.Mode == "debug" {
		level = logger.Info
	}
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connected", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Database))

	if err := AutoMigrate(log); err != nil {
		return err
	}
	Recordings = NewGormRecordingStore(DB)
	return nil
}

func AutoMigrate(log *zap.Logger) error {
	err := DB.AutoMigrate(
		&models.Device{},
		&models.Recording{},
		&models.SessionSnapshot{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database migration completed")

	return SeedDefaultData(log)
}

func SeedDefaultData(log *zap.Logger) error {
	for _, device := range models.DefaultDevices() {
		device.ID = 0
		var existing models.Device
		err := DB.Where("name = ?", device.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up device %s: %w", device.Name, err)
		}
		if err := DB.Create(&device).Error; err != nil {
			return fmt.Errorf("failed to create device %s: %w", device.Name, err)
		}
	}

	log.Info("Default devices seeded")
	return nil
}

// LookupDevice returns an active device preset, from the database when one
// is configured and from the built-in presets otherwise.
func LookupDevice(id uint) (models.Device, error) {
	if DB != nil {
		var device models.Device
		if err := DB.Where("status = ?", 1).First(&device, id).Error; err != nil {
			return models.Device{}, err
		}
		return device, nil
	}
	for _, d := range models.DefaultDevices() {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Device{}, gorm.ErrRecordNotFound
}

// ListDevices returns the active device presets, defaults first.
func ListDevices() ([]models.Device, error) {
	if DB == nil {
		return models.DefaultDevices(), nil
	}
	var devices []models.Device
	err := DB.Where("status = ?", 1).Order("is_default DESC, id ASC").Find(&devices).Error
	return devices, err
}
