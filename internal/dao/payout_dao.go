package dao

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/dto"
	mainmodel "mkt-settle-api/internal/model/main"
)

type PayoutDao struct {
	DB *gorm.DB
}

// 工厂方法：默认使用 dal.MainDB
func NewPayoutDao() *PayoutDao {
	if dal.MainDB == nil {
		log.Panic("[FATAL] dal.MainDB is nil - database not initialized")
	}
	return &PayoutDao{DB: dal.MainDB}
}

// 支持传入自定义 DB（比如 txDB）
func NewPayoutDaoWithDB(db *gorm.DB) *PayoutDao {
	if db == nil {
		log.Panic("[FATAL] db cannot be nil")
	}
	return &PayoutDao{DB: db}
}

func (r *PayoutDao) InsertRequest(m *mainmodel.PayoutRequest) error {
	return r.DB.Create(m).Error
}

// GetRequest 不存在返回 nil, nil
func (r *PayoutDao) GetRequest(id uint64) (*mainmodel.PayoutRequest, error) {
	return r.firstRequest("id = ?", id)
}

func (r *PayoutDao) GetRequestByKey(key string) (*mainmodel.PayoutRequest, error) {
	return r.firstRequest("idempotency_key = ?", key)
}

func (r *PayoutDao) GetRequestByTransferID(transferID string) (*mainmodel.PayoutRequest, error) {
	return r.firstRequest("transfer_id = ?", transferID)
}

func (r *PayoutDao) firstRequest(where string, args ...interface{}) (*mainmodel.PayoutRequest, error) {
	var m mainmodel.PayoutRequest
	err := r.DB.Where(where, args...).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query payout request failed: %w", err)
	}
	return &m, nil
}

// UpdateRequest 状态条件更新，from 为空表示不校验
func (r *PayoutDao) UpdateRequest(id uint64, from string, data map[string]interface{}) (bool, error) {
	data["update_time"] = time.Now().UTC()
	q := r.DB.Model(&mainmodel.PayoutRequest{}).Where("id = ?", id)
	if from != "" {
		q = q.Where("status = ?", from)
	}
	res := q.Updates(data)
	if res.Error != nil {
		return false, fmt.Errorf("update payout request %d failed: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PayoutDao) ListRequestsByStatus(status string, limit int) ([]mainmodel.PayoutRequest, error) {
	var out []mainmodel.PayoutRequest
	err := r.DB.Where("status = ?", status).Order("id ASC").Limit(limit).Find(&out).Error
	return out, err
}

// ListTimeoutRetryable 超时失败且未超过最大尝试次数的申请
func (r *PayoutDao) ListTimeoutRetryable(maxAttempts, limit int) ([]mainmodel.PayoutRequest, error) {
	var out []mainmodel.PayoutRequest
	err := r.DB.Where("status = ? AND failure_reason = ? AND attempt < ?", dto.PayoutFailed, dto.FailureReasonTimeout, maxAttempts).
		Order("id ASC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *PayoutDao) ListRequestsByUser(userID uint64, role string, limit, offset int) ([]mainmodel.PayoutRequest, int64, error) {
	q := r.DB.Model(&mainmodel.PayoutRequest{}).Where("user_id = ?", userID)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []mainmodel.PayoutRequest
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

// LastDestination 用户上一次使用的收款账户
func (r *PayoutDao) LastDestination(userID uint64, role string) (string, error) {
	var m mainmodel.PayoutRequest
	err := r.DB.Select("destination").Where("user_id = ? AND role = ? AND destination <> ''", userID, role).
		Order("id DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return m.Destination, err
}

func (r *PayoutDao) InsertBatch(b *mainmodel.PayoutBatch) error {
	return r.DB.Create(b).Error
}

func (r *PayoutDao) GetBatch(id uint64) (*mainmodel.PayoutBatch, error) {
	var b mainmodel.PayoutBatch
	err := r.DB.Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query batch failed: %w", err)
	}
	return &b, nil
}

func (r *PayoutDao) UpdateBatch(id uint64, data map[string]interface{}) error {
	data["update_time"] = time.Now().UTC()
	return r.DB.Model(&mainmodel.PayoutBatch{}).Where("id = ?", id).Updates(data).Error
}

// ListBatches statuses 为空时返回全部
func (r *PayoutDao) ListBatches(statuses []string, limit, offset int) ([]mainmodel.PayoutBatch, int64, error) {
	q := r.DB.Model(&mainmodel.PayoutBatch{})
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []mainmodel.PayoutBatch
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

// CountBatchesForWindow 某个打款日已排过的定时批次数
func (r *PayoutDao) CountBatchesForWindow(windowDate string) (int64, error) {
	var n int64
	err := r.DB.Model(&mainmodel.PayoutBatch{}).Where("window_date = ? AND forced = ?", windowDate, false).Count(&n).Error
	return n, err
}

func (r *PayoutDao) ListBatchMembers(batchID uint64) ([]mainmodel.PayoutRequest, error) {
	var out []mainmodel.PayoutRequest
	err := r.DB.Where("batch_id = ?", batchID).Order("id ASC").Find(&out).Error
	return out, err
}

// CountMembersByStatus batch 内各状态数量
func (r *PayoutDao) CountMembersByStatus(batchID uint64) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.DB.Model(&mainmodel.PayoutRequest{}).Select("status, COUNT(*) AS n").
		Where("batch_id = ?", batchID).Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *PayoutDao) InsertAttempt(a *mainmodel.PayoutAttempt) error {
	return r.DB.Create(a).Error
}

func (r *PayoutDao) ListAttempts(requestID uint64) ([]mainmodel.PayoutAttempt, error) {
	var out []mainmodel.PayoutAttempt
	err := r.DB.Where("request_id = ?", requestID).Order("id ASC").Find(&out).Error
	return out, err
}

// StatusSummary 按状态汇总金额
func (r *PayoutDao) StatusSummary() ([]dto.PayoutStatusStat, error) {
	var out []dto.PayoutStatusStat
	err := r.DB.Model(&mainmodel.PayoutRequest{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount),0) AS amount").
		Group("status").Order("status").Scan(&out).Error
	return out, err
}
