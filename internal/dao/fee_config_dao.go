package dao

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"mkt-settle-api/internal/dal"
	mainmodel "mkt-settle-api/internal/model/main"
)

type FeeConfigDao struct {
	DB *gorm.DB
}

func NewFeeConfigDao() *FeeConfigDao {
	if dal.MainDB == nil {
		log.Panic("[FATAL] dal.MainDB is nil - database not initialized")
	}
	return &FeeConfigDao{DB: dal.MainDB}
}

func NewFeeConfigDaoWithDB(db *gorm.DB) *FeeConfigDao {
	if db == nil {
		log.Panic("[FATAL] db cannot be nil")
	}
	return &FeeConfigDao{DB: db}
}

// Get 不存在返回 nil, nil
func (r *FeeConfigDao) Get(version int) (*mainmodel.FeeConfig, error) {
	var m mainmodel.FeeConfig
	err := r.DB.Where("version = ?", version).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *FeeConfigDao) Insert(m *mainmodel.FeeConfig) error {
	return r.DB.Create(m).Error
}
