package infrastructure

import (
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLOptions 连接池配置
type MySQLOptions struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// OpenMySQL 打开 MySQL 连接并按需迁移 orders 表
func OpenMySQL(opts MySQLOptions) (*gorm.DB, error) {
	cfg, err := driver.ParseDSN(opts.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mysql dsn")
	}
	// created_at 需要按 time.Time 读回，时区统一为 UTC
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if opts.AutoMigrate {
		if err := db.AutoMigrate(&OrderModel{}); err != nil {
			return nil, errors.Wrap(err, "migrate orders table")
		}
	}
	return db, nil
}
