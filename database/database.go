package database

import (
	"fmt"

	"budgettracker/config"
	"budgettracker/logger"
	"budgettracker/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 初始化数据库连接
func Init(cfg *config.Config) error {
	log := logger.Component(logger.ComponentDatabase)

	dialector, err := openDialector(cfg.Database)
	if err != nil {
		return err
	}

	level := gormlogger.Info
	if cfg.Server.Mode == "release" {
		level = gormlogger.Warn
	}

	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	if err := SeedCategories(DB); err != nil {
		log.Warn("初始化默认类别失败", logger.FieldError, err)
	}

	log.Info("数据库初始化成功", "driver", cfg.Database.Driver)
	return nil
}

func openDialector(c config.DatabaseConfig) (gorm.Dialector, error) {
	switch c.Driver {
	case "mysql", "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.DBName, c.Charset)
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(c.Path), nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", c.Driver)
	}
}

// Migrate 自动迁移数据表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Transaction{},
		&models.Budget{},
		&models.FinancialGoal{},
		&models.MonthlySummary{},
	)
}

// SeedCategories 初始化默认类别（仅当表为空时）
func SeedCategories(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := models.DefaultCategories()
	cats := make([]models.Category, 0, len(defaults))
	for i, d := range defaults {
		cats = append(cats, models.Category{
			Name:  d.Name,
			Type:  d.Type,
			Color: d.Color,
			Sort:  (i + 1) * 10,
		})
	}
	return db.Create(&cats).Error
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}

// forUpdate 行锁，sqlite 不支持 FOR UPDATE，依赖其库级写锁
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
