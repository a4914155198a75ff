package dal

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/logger"
	mainmodel "mkt-settle-api/internal/model/main"
)

var MainDB *gorm.DB

func InitMainDB() {
	c := config.C.MysqlMain
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)

	level := gormlogger.Warn
	if c.LogSQL {
		level = gormlogger.Info
	}
	// SQL 与慢查询日志单独落 ./logs/sql
	sqlLog := logger.NewLogger("sql")
	newLogger := gormlogger.New(
		log.New(sqlLog.Writer(), "", 0),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:  newLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatalf("connect main db failed: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)

	if c.AutoMigrate {
		if err := Migrate(db); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	}
	MainDB = db
}

// Close 关闭 MQ、Redis、数据库连接，退出前调用
func Close() {
	closeRabbitMQ()
	if RedisClient != nil {
		_ = RedisClient.Close()
	}
	if MainDB != nil {
		if sqlDB, err := MainDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// Migrate 建表，测试里对 sqlite 同样调用
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(mainmodel.AllModels()...)
}
