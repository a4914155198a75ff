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

type LedgerDao struct {
	DB *gorm.DB
}

// 工厂方法：默认使用 dal.MainDB
func NewLedgerDao() *LedgerDao {
	if dal.MainDB == nil {
		log.Panic("[FATAL] dal.MainDB is nil - database not initialized")
	}
	return &LedgerDao{DB: dal.MainDB}
}

// 支持传入自定义 DB（比如 txDB）
func NewLedgerDaoWithDB(db *gorm.DB) *LedgerDao {
	if db == nil {
		log.Panic("[FATAL] db cannot be nil")
	}
	return &LedgerDao{DB: db}
}

func (r *LedgerDao) checkDB() error {
	if r == nil {
		return errors.New("LedgerDao is nil")
	}
	if r.DB == nil {
		return errors.New("DB connection is nil")
	}
	return nil
}

// Get 不存在返回 nil, nil
func (r *LedgerDao) Get(userID uint64, role string) (*mainmodel.Ledger, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	var l mainmodel.Ledger
	err := r.DB.Where("user_id = ? AND role = ?", userID, role).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ledger failed: %w", err)
	}
	return &l, nil
}

func (r *LedgerDao) GetByID(id uint64) (*mainmodel.Ledger, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	var l mainmodel.Ledger
	if err := r.DB.Where("id = ?", id).First(&l).Error; err != nil {
		return nil, fmt.Errorf("query ledger %d failed: %w", id, err)
	}
	return &l, nil
}

// GetOrCreate 首次入账时开户
func (r *LedgerDao) GetOrCreate(userID uint64, role, currency string) (*mainmodel.Ledger, error) {
	l, err := r.Get(userID, role)
	if err != nil || l != nil {
		return l, err
	}
	now := time.Now().UTC()
	l = &mainmodel.Ledger{
		UserID:     userID,
		Role:       role,
		Currency:   currency,
		CreateTime: now,
		UpdateTime: now,
	}
	if err := r.DB.Create(l).Error; err != nil {
		// 并发开户撞唯一索引，回读即可
		if existing, qerr := r.Get(userID, role); qerr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create ledger failed: %w", err)
	}
	return l, nil
}

// ApplyDelta 条件更新（CAS）：任一余额变负则不更新，返回 false
func (r *LedgerDao) ApplyDelta(id uint64, dAvailable, dPending, dPaid int64, payoutAt *time.Time) (bool, error) {
	if err := r.checkDB(); err != nil {
		return false, err
	}
	data := map[string]interface{}{
		"available":     gorm.Expr("available + ?", dAvailable),
		"pending":       gorm.Expr("pending + ?", dPending),
		"lifetime_paid": gorm.Expr("lifetime_paid + ?", dPaid),
		"update_time":   time.Now().UTC(),
	}
	if payoutAt != nil {
		data["last_payout_at"] = *payoutAt
	}
	res := r.DB.Model(&mainmodel.Ledger{}).
		Where("id = ? AND available + ? >= 0 AND pending + ? >= 0", id, dAvailable, dPending).
		Updates(data)
	if res.Error != nil {
		return false, fmt.Errorf("update ledger %d failed: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerDao) InsertEntry(e *mainmodel.LedgerEntry) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	return r.DB.Create(e).Error
}

// ListEntries 按时间倒序分页
func (r *LedgerDao) ListEntries(ledgerID uint64, limit, offset int) ([]mainmodel.LedgerEntry, int64, error) {
	if err := r.checkDB(); err != nil {
		return nil, 0, err
	}
	var total int64
	q := r.DB.Model(&mainmodel.LedgerEntry{}).Where("ledger_id = ?", ledgerID)
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count entries failed: %w", err)
	}
	var out []mainmodel.LedgerEntry
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list entries failed: %w", err)
	}
	return out, total, nil
}

// AllEntries 按写入顺序返回全部流水，回放对账用
func (r *LedgerDao) AllEntries(ledgerID uint64) ([]mainmodel.LedgerEntry, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	var out []mainmodel.LedgerEntry
	err := r.DB.Where("ledger_id = ?", ledgerID).Order("id ASC").Find(&out).Error
	return out, err
}

// EachLedger 分批遍历所有账户
func (r *LedgerDao) EachLedger(fn func(l mainmodel.Ledger) error) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	var batch []mainmodel.Ledger
	return r.DB.Model(&mainmodel.Ledger{}).Order("id ASC").FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
		for _, l := range batch {
			if err := fn(l); err != nil {
				return err
			}
		}
		return nil
	}).Error
}

// SumBalances 全部账户可用与处理中合计
func (r *LedgerDao) SumBalances() (available, pending int64, err error) {
	if err = r.checkDB(); err != nil {
		return 0, 0, err
	}
	var row struct {
		Available int64
		Pending   int64
	}
	err = r.DB.Model(&mainmodel.Ledger{}).
		Select("COALESCE(SUM(available),0) AS available, COALESCE(SUM(pending),0) AS pending").
		Scan(&row).Error
	return row.Available, row.Pending, err
}
