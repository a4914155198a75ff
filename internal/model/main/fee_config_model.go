package mainmodel

import (
	"time"
)

// FeeConfig 费率版本登记表，version 一经写入不可修改
type FeeConfig struct {
	Version    int       `gorm:"column:version;primaryKey;autoIncrement:false" json:"version"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"` // settlement.FeeConfiguration JSON
	CreateTime time.Time `gorm:"column:create_time;not null" json:"createTime"`
}

func (FeeConfig) TableName() string {
	return "mk_fee_config"
}

// AllModels AutoMigrate 用
func AllModels() []interface{} {
	return []interface{}{
		&FeeConfig{},
		&Ledger{},
		&LedgerEntry{},
		&Sale{},
		&Distribution{},
		&PayoutRequest{},
		&PayoutBatch{},
		&PayoutAttempt{},
	}
}
