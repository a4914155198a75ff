package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dao"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/logger"
	mainmodel "mkt-settle-api/internal/model/main"
	"mkt-settle-api/internal/utils"
)

// LedgerService 唯一可以改余额的地方，所有变动都追加一条流水
type LedgerService struct {
	db    *gorm.DB
	locks *keyedLocker
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db, locks: newKeyedLocker()}
}

func ledgerKey(userID uint64, role string) string {
	return fmt.Sprintf("%d:%s", userID, role)
}

// Lock 串行化同一账户的“读余额-再冻结”，数据库层另有条件更新兜底
func (s *LedgerService) Lock(userID uint64, role string) func() {
	return s.locks.Lock(ledgerKey(userID, role))
}

func (s *LedgerService) Credit(ctx context.Context, m dto.LedgerMutation) (*mainmodel.LedgerEntry, error) {
	m.Type = dto.LedgerTypeCredit
	return s.Apply(ctx, m)
}

func (s *LedgerService) Debit(ctx context.Context, m dto.LedgerMutation) (*mainmodel.LedgerEntry, error) {
	m.Type = dto.LedgerTypeDebit
	return s.Apply(ctx, m)
}

func (s *LedgerService) Reserve(ctx context.Context, m dto.LedgerMutation) (*mainmodel.LedgerEntry, error) {
	m.Type = dto.LedgerTypeReserve
	return s.Apply(ctx, m)
}

func (s *LedgerService) Release(ctx context.Context, m dto.LedgerMutation) (*mainmodel.LedgerEntry, error) {
	m.Type = dto.LedgerTypeRelease
	return s.Apply(ctx, m)
}

func (s *LedgerService) Settle(ctx context.Context, m dto.LedgerMutation) (*mainmodel.LedgerEntry, error) {
	m.Type = dto.LedgerTypeSettle
	return s.Apply(ctx, m)
}

// Apply 单独事务执行一次变动
func (s *LedgerService) Apply(ctx context.Context, m dto.LedgerMutation) (*mainmodel.LedgerEntry, error) {
	var entry *mainmodel.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.ApplyTx(tx, m)
		return err
	})
	return entry, err
}

// deltas 各类型对 (可用, 处理中, 累计已打款) 的影响
func deltas(typ int8, amount int64) (dAvailable, dPending, dPaid int64, err error) {
	switch typ {
	case dto.LedgerTypeCredit:
		return amount, 0, 0, nil
	case dto.LedgerTypeDebit:
		return -amount, 0, 0, nil
	case dto.LedgerTypeReserve:
		return -amount, amount, 0, nil
	case dto.LedgerTypeRelease:
		return amount, -amount, 0, nil
	case dto.LedgerTypeSettle:
		return 0, -amount, amount, nil
	}
	return 0, 0, 0, fmt.Errorf("unknown ledger entry type %d", typ)
}

// ApplyTx 在调用方事务内执行，供分账、打款与其它写操作一起提交
func (s *LedgerService) ApplyTx(tx *gorm.DB, m dto.LedgerMutation) (*mainmodel.LedgerEntry, error) {
	if m.Amount <= 0 {
		return nil, constant.Errorf(constant.CodeInvalidParams, "ledger amount must be positive, got %d", m.Amount)
	}
	if !dto.ValidRole(m.Role) {
		return nil, constant.Errorf(constant.CodeInvalidParams, "role %q unsupported", m.Role)
	}
	dA, dP, dPaid, err := deltas(m.Type, m.Amount)
	if err != nil {
		return nil, constant.Wrap(constant.CodeInternalError, err, "apply ledger")
	}

	ledgerDao := dao.NewLedgerDaoWithDB(tx)
	var ledger *mainmodel.Ledger
	if m.Type == dto.LedgerTypeCredit {
		ledger, err = ledgerDao.GetOrCreate(m.UserID, m.Role, m.Currency)
	} else {
		ledger, err = ledgerDao.Get(m.UserID, m.Role)
	}
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load ledger %d/%s", m.UserID, m.Role)
	}
	if ledger == nil {
		return nil, constant.Errorf(constant.CodeBalanceInsufficient, "ledger %d/%s has no balance", m.UserID, m.Role).
			WithData(dto.LedgerSnapshot{UserID: m.UserID, Role: m.Role, Currency: m.Currency})
	}

	now := time.Now().UTC()
	var payoutAt *time.Time
	if m.Type == dto.LedgerTypeSettle {
		payoutAt = &now
	}
	ok, err := ledgerDao.ApplyDelta(ledger.ID, dA, dP, dPaid, payoutAt)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "apply ledger delta")
	}
	if !ok {
		return nil, constant.Errorf(constant.CodeBalanceInsufficient,
			"ledger %d/%s available %d pending %d, cannot apply type %d amount %d",
			m.UserID, m.Role, ledger.Available, ledger.Pending, m.Type, m.Amount).
			WithData(toSnapshot(ledger))
	}

	after, err := ledgerDao.GetByID(ledger.ID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "reload ledger")
	}
	entry := &mainmodel.LedgerEntry{
		LedgerID:     ledger.ID,
		UserID:       m.UserID,
		Role:         m.Role,
		Type:         m.Type,
		Amount:       m.Amount,
		RefNo:        m.RefNo,
		Description:  m.Description,
		Available:    after.Available,
		Pending:      after.Pending,
		LifetimePaid: after.LifetimePaid,
		CreateTime:   now,
	}
	if err := ledgerDao.InsertEntry(entry); err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "insert ledger entry")
	}
	logger.Biz().WithFields(map[string]interface{}{
		"user": m.UserID, "role": m.Role, "type": m.Type, "amount": m.Amount, "ref": m.RefNo,
		"available": after.Available, "pending": after.Pending,
	}).Info("ledger applied")
	return entry, nil
}

func toSnapshot(l *mainmodel.Ledger) dto.LedgerSnapshot {
	return dto.LedgerSnapshot{
		UserID:           l.UserID,
		Role:             l.Role,
		Currency:         l.Currency,
		AvailableBalance: l.Available,
		PendingPayout:    l.Pending,
		LifetimePaidOut:  l.LifetimePaid,
		LastPayoutAt:     l.LastPayoutAt,
	}
}

// Snapshot 账户不存在时返回零余额
func (s *LedgerService) Snapshot(ctx context.Context, userID uint64, role string) (*dto.LedgerSnapshot, error) {
	if !dto.ValidRole(role) {
		return nil, constant.Errorf(constant.CodeInvalidParams, "role %q unsupported", role)
	}
	l, err := dao.NewLedgerDaoWithDB(s.db.WithContext(ctx)).Get(userID, role)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load ledger")
	}
	if l == nil {
		return &dto.LedgerSnapshot{UserID: userID, Role: role}, nil
	}
	snap := toSnapshot(l)
	return &snap, nil
}

// Entries 流水分页，page 从 1 开始
func (s *LedgerService) Entries(ctx context.Context, userID uint64, role string, page, size int) ([]dto.LedgerEntryVo, int64, error) {
	ledgerDao := dao.NewLedgerDaoWithDB(s.db.WithContext(ctx))
	l, err := ledgerDao.Get(userID, role)
	if err != nil {
		return nil, 0, constant.Wrap(constant.CodeDatabaseError, err, "load ledger")
	}
	if l == nil {
		return []dto.LedgerEntryVo{}, 0, nil
	}
	page, size = utils.NormalizePage(page, size)
	rows, total, err := ledgerDao.ListEntries(l.ID, size, (page-1)*size)
	if err != nil {
		return nil, 0, constant.Wrap(constant.CodeDatabaseError, err, "list entries")
	}
	out := make([]dto.LedgerEntryVo, 0, len(rows))
	for _, e := range rows {
		out = append(out, dto.LedgerEntryVo{
			ID: e.ID, Type: e.Type, Amount: e.Amount, RefNo: e.RefNo, Description: e.Description,
			Available: e.Available, Pending: e.Pending, LifetimePaid: e.LifetimePaid, CreateTime: e.CreateTime,
		})
	}
	return out, total, nil
}

// Replay 从零回放流水，任何中间状态为负或与记录的变动后余额不符都视为不一致
func Replay(entries []mainmodel.LedgerEntry) (available, pending, paid int64, err error) {
	for _, e := range entries {
		dA, dP, dPaid, derr := deltas(e.Type, e.Amount)
		if derr != nil {
			return 0, 0, 0, derr
		}
		available += dA
		pending += dP
		paid += dPaid
		if available < 0 || pending < 0 {
			return available, pending, paid, constant.Errorf(constant.CodeReconDataMismatch, "entry %d drives balance negative", e.ID)
		}
		if available != e.Available || pending != e.Pending || paid != e.LifetimePaid {
			return available, pending, paid, constant.Errorf(constant.CodeReconDataMismatch, "entry %d recorded %d/%d/%d, replayed %d/%d/%d",
				e.ID, e.Available, e.Pending, e.LifetimePaid, available, pending, paid)
		}
	}
	return available, pending, paid, nil
}

// Reconcile 逐个账户回放流水并与物化余额比对
func (s *LedgerService) Reconcile(ctx context.Context) (*dto.ReconcileReport, error) {
	ledgerDao := dao.NewLedgerDaoWithDB(s.db.WithContext(ctx))
	report := &dto.ReconcileReport{Mismatches: []dto.ReconcileMismatch{}}
	err := ledgerDao.EachLedger(func(l mainmodel.Ledger) error {
		report.Checked++
		entries, err := ledgerDao.AllEntries(l.ID)
		if err != nil {
			return err
		}
		a, p, paid, rerr := Replay(entries)
		replayed := dto.LedgerSnapshot{UserID: l.UserID, Role: l.Role, Currency: l.Currency,
			AvailableBalance: a, PendingPayout: p, LifetimePaidOut: paid}
		reason := ""
		switch {
		case rerr != nil:
			reason = rerr.Error()
		case a != l.Available || p != l.Pending || paid != l.LifetimePaid:
			reason = "materialized balance differs from replay"
		}
		if reason != "" {
			report.Mismatches = append(report.Mismatches, dto.ReconcileMismatch{
				LedgerID: l.ID, UserID: l.UserID, Role: l.Role,
				Stored: toSnapshot(&l), Replayed: replayed, Reason: reason,
			})
			logger.Biz().WithField("ledger", l.ID).Error("reconcile mismatch: " + reason)
		}
		return nil
	})
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "reconcile ledgers")
	}
	return report, nil
}
