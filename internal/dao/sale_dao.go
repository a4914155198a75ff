package dao

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"mkt-settle-api/internal/dal"
	mainmodel "mkt-settle-api/internal/model/main"
)

type SaleDao struct {
	DB *gorm.DB
}

func NewSaleDao() *SaleDao {
	if dal.MainDB == nil {
		log.Panic("[FATAL] dal.MainDB is nil - database not initialized")
	}
	return &SaleDao{DB: dal.MainDB}
}

func NewSaleDaoWithDB(db *gorm.DB) *SaleDao {
	if db == nil {
		log.Panic("[FATAL] db cannot be nil")
	}
	return &SaleDao{DB: db}
}

// GetBySaleNo 不存在返回 nil, nil
func (r *SaleDao) GetBySaleNo(saleNo string) (*mainmodel.Sale, error) {
	var s mainmodel.Sale
	err := r.DB.Where("sale_no = ?", saleNo).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query sale failed: %w", err)
	}
	return &s, nil
}

func (r *SaleDao) GetByID(id uint64) (*mainmodel.Sale, error) {
	var s mainmodel.Sale
	if err := r.DB.Where("id = ?", id).First(&s).Error; err != nil {
		return nil, fmt.Errorf("query sale %d failed: %w", id, err)
	}
	return &s, nil
}

func (r *SaleDao) Insert(s *mainmodel.Sale) error {
	return r.DB.Create(s).Error
}

func (r *SaleDao) InsertDistributions(rows []mainmodel.Distribution) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB.Create(&rows).Error
}

func (r *SaleDao) ListDistributions(saleID uint64) ([]mainmodel.Distribution, error) {
	var out []mainmodel.Distribution
	err := r.DB.Where("sale_id = ?", saleID).Order("id ASC").Find(&out).Error
	return out, err
}

// DueSaleIDs 冻结期已过、仍有 pending 分账的销售
func (r *SaleDao) DueSaleIDs(now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.DB.Model(&mainmodel.Distribution{}).
		Where("status = ? AND settle_at <= ?", "pending", now).
		Distinct("sale_id").
		Limit(limit).
		Pluck("sale_id", &ids).Error
	return ids, err
}

// UpdateDistributionStatus 状态条件更新
func (r *SaleDao) UpdateDistributionStatus(id uint64, from, to string, data map[string]interface{}) (bool, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["status"] = to
	data["update_time"] = time.Now().UTC()
	res := r.DB.Model(&mainmodel.Distribution{}).Where("id = ? AND status = ?", id, from).Updates(data)
	if res.Error != nil {
		return false, fmt.Errorf("update distribution %d failed: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *SaleDao) UpdateSaleStatus(id uint64, from, to int8, data map[string]interface{}) (bool, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["status"] = to
	data["update_time"] = time.Now().UTC()
	res := r.DB.Model(&mainmodel.Sale{}).Where("id = ? AND status = ?", id, from).Updates(data)
	if res.Error != nil {
		return false, fmt.Errorf("update sale %d failed: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
