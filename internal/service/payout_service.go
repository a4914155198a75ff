package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dao"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/idgen"
	"mkt-settle-api/internal/logger"
	mainmodel "mkt-settle-api/internal/model/main"
	"mkt-settle-api/internal/notify"
	"mkt-settle-api/internal/transfer"
	"mkt-settle-api/internal/transfer/health"
	rediskey "mkt-settle-api/internal/types/redis-key"
	"mkt-settle-api/internal/utils"
	"mkt-settle-api/internal/utils/timeutil"
)

// PayoutEventPublisher 打款结果对外通知，由 mq 包实现
type PayoutEventPublisher interface {
	PublishPayoutEvent(ctx context.Context, evt dto.PayoutEvent) error
}

type PayoutOptions struct {
	MinimumThreshold int64
	WindowDays       []int
	Workers          int
	TransferTimeout  time.Duration
	MaxAttempts      int
	StaleProcessing  time.Duration
}

func PayoutOptionsFromConfig(c config.PayoutCfg) PayoutOptions {
	return PayoutOptions{
		MinimumThreshold: c.MinimumThreshold,
		WindowDays:       c.WindowDays,
		Workers:          c.Workers,
		TransferTimeout:  time.Duration(c.TransferTimeout) * time.Second,
		MaxAttempts:      c.MaxAttempts,
		StaleProcessing:  time.Duration(c.StaleProcessing) * time.Minute,
	}
}

const batchLockTTL = 10 * time.Minute

// PayoutService 提现申请与批次打款状态机
type PayoutService struct {
	db         *gorm.DB
	ledger     *LedgerService
	transferer transfer.Transferer
	rdb        *redis.Client
	notifier   notify.Notifier
	events     PayoutEventPublisher
	health     *health.Tracker
	provider   string
	opts       PayoutOptions
	currency   string
	batchLocks *keyedLocker
	now        func() time.Time
}

func NewPayoutService(db *gorm.DB, ledger *LedgerService, tr transfer.Transferer, opts PayoutOptions, currency string) *PayoutService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &PayoutService{
		db:         db,
		ledger:     ledger,
		transferer: tr,
		notifier:   notify.Noop{},
		opts:       opts,
		currency:   currency,
		batchLocks: newKeyedLocker(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithRedis 批次分布式锁与失败计数
func (s *PayoutService) WithRedis(rdb *redis.Client) *PayoutService {
	s.rdb = rdb
	return s
}

func (s *PayoutService) WithNotifier(n notify.Notifier) *PayoutService {
	if n != nil {
		s.notifier = n
	}
	return s
}

func (s *PayoutService) WithEvents(p PayoutEventPublisher) *PayoutService {
	s.events = p
	return s
}

// WithHealth 按渠道统计转账成功率，跌破阈值时告警
func (s *PayoutService) WithHealth(t *health.Tracker, provider string) *PayoutService {
	s.health, s.provider = t, provider
	return s
}

func idempotencyKey(requestID uint64, attempt int) string {
	return fmt.Sprintf("po_%d_%d", requestID, attempt)
}

func payoutRef(requestID uint64) string {
	return fmt.Sprintf("payout:%d", requestID)
}

func toPayoutVo(m *mainmodel.PayoutRequest) *dto.PayoutVo {
	return &dto.PayoutVo{
		ID: m.ID, UserID: m.UserID, Role: m.Role, Amount: m.Amount, Currency: m.Currency,
		Status: m.Status, BatchID: m.BatchID, Attempt: m.Attempt, TransferID: m.TransferID,
		FailureReason: m.FailureReason, RequestedAt: m.RequestedAt, ProcessedAt: m.ProcessedAt,
	}
}

func toBatchVo(b *mainmodel.PayoutBatch) dto.BatchVo {
	return dto.BatchVo{
		ID: b.ID, BatchNo: b.BatchNo, WindowDate: b.WindowDate, Forced: b.Forced,
		TotalAmount: b.TotalAmount, MemberCount: b.MemberCount, Status: b.Status,
		SubmittedAt: b.SubmittedAt, SettledAt: b.SettledAt,
	}
}

// RequestPayout 冻结可用余额并创建 requested 申请；同一账户串行
func (s *PayoutService) RequestPayout(ctx context.Context, req dto.PayoutCreateReq) (*dto.PayoutVo, error) {
	if req.UserID == 0 || !dto.ValidRole(req.Role) {
		return nil, constant.Errorf(constant.CodeInvalidParams, "userId and a valid role are required")
	}
	unlock := s.ledger.Lock(req.UserID, req.Role)
	defer unlock()

	snap, err := s.ledger.Snapshot(ctx, req.UserID, req.Role)
	if err != nil {
		return nil, err
	}
	amount := snap.AvailableBalance
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, constant.Errorf(constant.CodeParamsRangeError, "amount must be positive")
		}
		amount = *req.Amount
	}
	if snap.AvailableBalance == 0 || amount > snap.AvailableBalance {
		return nil, constant.Errorf(constant.CodeBalanceInsufficient,
			"available %s, requested %s", utils.Cents(snap.AvailableBalance), utils.Cents(amount)).WithData(snap)
	}
	if snap.AvailableBalance < s.opts.MinimumThreshold || amount < s.opts.MinimumThreshold {
		return nil, constant.Errorf(constant.CodePayoutBelowMinimum,
			"minimum payout is %s", utils.Cents(s.opts.MinimumThreshold)).WithData(snap)
	}

	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		dest, err = dao.NewPayoutDaoWithDB(s.db.WithContext(ctx)).LastDestination(req.UserID, req.Role)
		if err != nil {
			return nil, constant.Wrap(constant.CodeDatabaseError, err, "load destination")
		}
		if dest == "" {
			return nil, constant.Errorf(constant.CodeMissingParams, "destination is required for the first payout")
		}
	}

	now := s.now()
	id := idgen.New()
	currency := snap.Currency
	if currency == "" {
		currency = s.currency
	}
	row := &mainmodel.PayoutRequest{
		ID:             id,
		UserID:         req.UserID,
		Role:           req.Role,
		Amount:         amount,
		Currency:       currency,
		Destination:    dest,
		Status:         dto.PayoutRequested,
		Attempt:        1,
		IdempotencyKey: idempotencyKey(id, 1),
		RequestedAt:    now,
		UpdateTime:     now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.ApplyTx(tx, dto.LedgerMutation{
			UserID: req.UserID, Role: req.Role, Currency: currency, Type: dto.LedgerTypeReserve,
			Amount: amount, RefNo: payoutRef(id), Description: "payout requested",
		}); err != nil {
			return err
		}
		if err := dao.NewPayoutDaoWithDB(tx).InsertRequest(row); err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "insert payout request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Biz().WithFields(map[string]interface{}{"payout": id, "user": req.UserID, "role": req.Role, "amount": amount}).Info("payout requested")
	return toPayoutVo(row), nil
}

// OpenBatch 收集全部 requested 申请和可自动重试的超时失败申请，组成新批次。
// 没有可打款申请时返回 nil, nil
func (s *PayoutService) OpenBatch(ctx context.Context, forced bool) (*dto.BatchVo, error) {
	now := s.now()
	window := timeutil.FormatDate(timeutil.CurrentPayoutWindow(now, s.opts.WindowDays))
	if forced {
		window = timeutil.FormatDate(now)
	}

	var (
		batch    *mainmodel.PayoutBatch
		unfunded []mainmodel.PayoutRequest
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payoutDao := dao.NewPayoutDaoWithDB(tx)
		requested, err := payoutDao.ListRequestsByStatus(dto.PayoutRequested, 1000)
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "list requested payouts")
		}
		retryable, err := payoutDao.ListTimeoutRetryable(s.opts.MaxAttempts, 1000)
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "list retryable payouts")
		}
		if len(requested)+len(retryable) == 0 {
			return nil
		}

		id := idgen.New()
		b := &mainmodel.PayoutBatch{
			ID:         id,
			BatchNo:    idgen.BatchNo(now, id),
			WindowDate: window,
			Forced:     forced,
			Status:     dto.BatchOpen,
			CreateTime: now,
			UpdateTime: now,
		}
		for _, r := range requested {
			ok, err := payoutDao.UpdateRequest(r.ID, dto.PayoutRequested, map[string]interface{}{
				"status": dto.PayoutBatched, "batch_id": id,
			})
			if err != nil {
				return constant.Wrap(constant.CodeDatabaseError, err, "attach payout %d", r.ID)
			}
			if ok {
				b.TotalAmount += r.Amount
				b.MemberCount++
			}
		}
		// 超时的申请重新冻结后进入新批次，沿用原幂等键，渠道侧若已成功不会重复打款
		for _, r := range retryable {
			if _, err := s.ledger.ApplyTx(tx, dto.LedgerMutation{
				UserID: r.UserID, Role: r.Role, Currency: r.Currency, Type: dto.LedgerTypeReserve,
				Amount: r.Amount, RefNo: payoutRef(r.ID), Description: "payout retry",
			}); err != nil {
				if !errors.Is(err, constant.ErrInsufficientBalance) {
					return err
				}
				// 余额已被提走，移出自动重试队列
				if _, err := payoutDao.UpdateRequest(r.ID, dto.PayoutFailed, map[string]interface{}{
					"failure_reason": dto.FailureReasonTimeoutUnfunded,
				}); err != nil {
					return constant.Wrap(constant.CodeDatabaseError, err, "park payout %d", r.ID)
				}
				unfunded = append(unfunded, r)
				continue
			}
			ok, err := payoutDao.UpdateRequest(r.ID, dto.PayoutFailed, map[string]interface{}{
				"status": dto.PayoutBatched, "batch_id": id, "attempt": r.Attempt + 1,
				"failure_reason": "", "processed_at": nil,
			})
			if err != nil {
				return constant.Wrap(constant.CodeDatabaseError, err, "re-batch payout %d", r.ID)
			}
			if !ok {
				return constant.Errorf(constant.CodePayoutStatusInvalid, "payout %d changed while batching", r.ID)
			}
			b.TotalAmount += r.Amount
			b.MemberCount++
		}
		if b.MemberCount == 0 {
			return nil
		}
		if err := payoutDao.InsertBatch(b); err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "insert batch")
		}
		batch = b
		return nil
	})
	if err == nil {
		for _, r := range unfunded {
			logger.Biz().WithField("payout", r.ID).Warn("timeout retry skipped, balance already withdrawn")
			s.notifier.Notify(notify.LevelError, "timeout payout cannot be retried, balance withdrawn", map[string]string{
				"payout": fmt.Sprint(r.ID), "user": fmt.Sprint(r.UserID), "key": r.IdempotencyKey, "amount": fmt.Sprint(r.Amount),
			})
		}
	}
	if err != nil || batch == nil {
		return nil, err
	}
	logger.Biz().WithFields(map[string]interface{}{
		"batch": batch.BatchNo, "window": window, "members": batch.MemberCount, "total": batch.TotalAmount, "forced": forced,
	}).Info("payout batch opened")
	vo := toBatchVo(batch)
	return &vo, nil
}

// acquireBatchLock 多实例时用 redis 互斥，单实例只用进程内锁
func (s *PayoutService) acquireBatchLock(ctx context.Context, batchID uint64) (func(), error) {
	unlock := s.batchLocks.Lock(fmt.Sprintf("batch:%d", batchID))
	if s.rdb == nil {
		return unlock, nil
	}
	key := rediskey.BatchSubmitLockKey(batchID)
	ok, err := s.rdb.SetNX(ctx, key, s.now().Unix(), batchLockTTL).Result()
	if err != nil {
		unlock()
		return nil, constant.Wrap(constant.CodeRedisError, err, "lock batch %d", batchID)
	}
	if !ok {
		unlock()
		return nil, constant.Errorf(constant.CodeBatchBusy, "batch %d is being submitted by another worker", batchID)
	}
	return func() {
		s.rdb.Del(context.Background(), key)
		unlock()
	}, nil
}

// SubmitBatch 并发调用转账接口，单笔失败或超时不影响其它成员。
// 重复提交只处理仍为 batched 的成员以及卡在 processing 超过阈值的成员（沿用同一幂等键）
func (s *PayoutService) SubmitBatch(ctx context.Context, batchID uint64) (*dto.BatchResult, error) {
	release, err := s.acquireBatchLock(ctx, batchID)
	if err != nil {
		return nil, err
	}
	defer release()

	payoutDao := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx))
	batch, err := payoutDao.GetBatch(batchID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load batch")
	}
	if batch == nil {
		return nil, constant.Errorf(constant.CodeBatchNotFound, "batch %d not found", batchID)
	}
	members, err := payoutDao.ListBatchMembers(batchID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "list batch members")
	}
	result := &dto.BatchResult{}
	if batch.Status == dto.BatchSettled {
		result.Batch = toBatchVo(batch)
		result.Skipped = len(members)
		return result, nil
	}

	now := s.now()
	update := map[string]interface{}{"status": dto.BatchSubmitted}
	if batch.SubmittedAt == nil {
		update["submitted_at"] = now
	}
	if err := payoutDao.UpdateBatch(batchID, update); err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "mark batch submitted")
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Workers)
	staleBefore := now.Add(-s.opts.StaleProcessing)
	for i := range members {
		m := members[i]
		redrive := m.Status == dto.PayoutProcessing && m.ProcessingAt != nil && m.ProcessingAt.Before(staleBefore)
		if m.Status != dto.PayoutBatched && !redrive {
			result.Skipped++
			continue
		}
		result.Submitted++
		g.Go(func() error {
			outcome := s.process(ctx, batch, m)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case dto.PayoutCompleted:
				result.Completed++
			case dto.PayoutFailed:
				result.Failed++
			case dto.PayoutProcessing:
				result.InFlight++
			default:
				result.Submitted--
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	refreshed, err := s.refreshBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	result.Batch = toBatchVo(refreshed)
	logger.Biz().WithFields(map[string]interface{}{
		"batch": batch.BatchNo, "status": refreshed.Status, "submitted": result.Submitted,
		"completed": result.Completed, "failed": result.Failed, "in_flight": result.InFlight,
	}).Info("payout batch submitted")
	if result.Failed > 0 {
		s.alertFailures(ctx, refreshed, result)
	}
	return result, nil
}

// process 单笔打款，返回最终落地的状态；空字符串表示被其它流程抢先处理
func (s *PayoutService) process(ctx context.Context, batch *mainmodel.PayoutBatch, m mainmodel.PayoutRequest) string {
	payoutDao := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx))
	claimedAt := s.now()
	ok, err := payoutDao.UpdateRequest(m.ID, m.Status, map[string]interface{}{
		"status": dto.PayoutProcessing, "processing_at": claimedAt,
	})
	if err != nil {
		logger.Biz().WithError(err).WithField("payout", m.ID).Error("claim payout failed")
		return ""
	}
	if !ok {
		return ""
	}
	m.Status = dto.PayoutProcessing

	tctx, cancel := context.WithTimeout(ctx, s.opts.TransferTimeout)
	start := time.Now()
	res, terr := s.transferer.Transfer(tctx, transfer.Request{
		IdempotencyKey: m.IdempotencyKey,
		Destination:    m.Destination,
		Amount:         utils.Cents(m.Amount),
		Currency:       m.Currency,
		Notes:          map[string]string{"payout_id": fmt.Sprint(m.ID), "batch_no": batch.BatchNo},
	})
	cancel()
	latency := time.Since(start).Milliseconds()

	attempt := &mainmodel.PayoutAttempt{
		RequestID:      m.ID,
		BatchID:        batch.ID,
		Attempt:        m.Attempt,
		IdempotencyKey: m.IdempotencyKey,
		LatencyMs:      latency,
		CreateTime:     s.now(),
	}
	var outcome string
	switch {
	case terr != nil && transfer.IsTimeout(terr):
		attempt.Outcome, attempt.Reason = "timeout", terr.Error()
		outcome, err = dto.PayoutFailed, s.fail(ctx, &m, dto.FailureReasonTimeout)
	case terr != nil:
		// 渠道结果未知，和超时一样保留幂等键，由下个窗口原键重试
		attempt.Outcome, attempt.Reason = "error", terr.Error()
		logger.Biz().WithError(terr).WithField("payout", m.ID).Warn("transfer outcome unknown")
		outcome, err = dto.PayoutFailed, s.fail(ctx, &m, dto.FailureReasonTimeout)
	case res.Status == transfer.StatusSucceeded:
		attempt.Outcome, attempt.TransferID = string(res.Status), res.TransferID
		outcome, err = dto.PayoutCompleted, s.complete(ctx, &m, res.TransferID)
	case res.Status == transfer.StatusFailed:
		reason := res.Reason
		if reason == "" {
			reason = "declined by processor"
		}
		attempt.Outcome, attempt.TransferID, attempt.Reason = string(res.Status), res.TransferID, reason
		logger.Biz().WithError(res.Err()).WithField("payout", m.ID).Warn("transfer declined")
		outcome, err = dto.PayoutFailed, s.fail(ctx, &m, truncate(reason, 255))
	default:
		attempt.Outcome, attempt.TransferID = string(transfer.StatusProcessing), res.TransferID
		outcome = dto.PayoutProcessing
		if res.TransferID != "" {
			_, err = payoutDao.UpdateRequest(m.ID, dto.PayoutProcessing, map[string]interface{}{"transfer_id": res.TransferID})
		}
	}
	if aerr := payoutDao.InsertAttempt(attempt); aerr != nil {
		logger.Biz().WithError(aerr).WithField("payout", m.ID).Error("record attempt failed")
	}
	s.observe(ctx, attempt.Outcome != "timeout" && attempt.Outcome != "error" && attempt.Outcome != string(transfer.StatusFailed))
	if err != nil {
		logger.Biz().WithError(err).WithField("payout", m.ID).Error("apply transfer outcome failed")
		return dto.PayoutProcessing
	}
	return outcome
}

// complete processing/batched → completed，处理中金额转入累计已打款
func (s *PayoutService) complete(ctx context.Context, m *mainmodel.PayoutRequest, transferID string) error {
	now := s.now()
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		data := map[string]interface{}{"status": dto.PayoutCompleted, "processed_at": now, "failure_reason": ""}
		if transferID != "" {
			data["transfer_id"] = transferID
		}
		ok, err := dao.NewPayoutDaoWithDB(tx).UpdateRequest(m.ID, m.Status, data)
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "complete payout %d", m.ID)
		}
		if !ok {
			return nil
		}
		applied = true
		_, err = s.ledger.ApplyTx(tx, dto.LedgerMutation{
			UserID: m.UserID, Role: m.Role, Currency: m.Currency, Type: dto.LedgerTypeSettle,
			Amount: m.Amount, RefNo: payoutRef(m.ID), Description: "payout completed",
		})
		return err
	})
	if err == nil && applied {
		m.Status, m.TransferID = dto.PayoutCompleted, transferID
		s.publish(ctx, m, "")
	}
	return err
}

// fail processing/batched → failed，解冻回可用余额并记录原因
func (s *PayoutService) fail(ctx context.Context, m *mainmodel.PayoutRequest, reason string) error {
	now := s.now()
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := dao.NewPayoutDaoWithDB(tx).UpdateRequest(m.ID, m.Status, map[string]interface{}{
			"status": dto.PayoutFailed, "failure_reason": reason, "processed_at": now,
		})
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "fail payout %d", m.ID)
		}
		if !ok {
			return nil
		}
		applied = true
		_, err = s.ledger.ApplyTx(tx, dto.LedgerMutation{
			UserID: m.UserID, Role: m.Role, Currency: m.Currency, Type: dto.LedgerTypeRelease,
			Amount: m.Amount, RefNo: payoutRef(m.ID), Description: "payout failed",
		})
		return err
	})
	if err == nil && applied {
		m.Status = dto.PayoutFailed
		s.publish(ctx, m, reason)
		logger.Biz().WithFields(map[string]interface{}{"payout": m.ID, "reason": reason}).Warn("payout failed")
	}
	return err
}

// lateSuccess 超时判失败后渠道回调成功：重新冻结并结清
func (s *PayoutService) lateSuccess(ctx context.Context, m *mainmodel.PayoutRequest, transferID string) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := dao.NewPayoutDaoWithDB(tx).UpdateRequest(m.ID, dto.PayoutFailed, map[string]interface{}{
			"status": dto.PayoutCompleted, "failure_reason": "", "processed_at": now, "transfer_id": transferID,
		})
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "complete payout %d", m.ID)
		}
		if !ok {
			return nil
		}
		for _, typ := range []int8{dto.LedgerTypeReserve, dto.LedgerTypeSettle} {
			if _, err := s.ledger.ApplyTx(tx, dto.LedgerMutation{
				UserID: m.UserID, Role: m.Role, Currency: m.Currency, Type: typ,
				Amount: m.Amount, RefNo: payoutRef(m.ID), Description: "payout completed after timeout",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.notifier.Notify(notify.LevelError, "late transfer success could not be booked", map[string]string{
			"payout": fmt.Sprint(m.ID), "transfer": transferID, "error": err.Error(),
		})
		return err
	}
	m.Status, m.TransferID = dto.PayoutCompleted, transferID
	s.publish(ctx, m, "")
	return nil
}

// CompleteTransfer 渠道异步结果；已终态的申请重复回调直接忽略
func (s *PayoutService) CompleteTransfer(ctx context.Context, cb dto.TransferCallback) (*dto.PayoutVo, error) {
	payoutDao := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx))
	var (
		m   *mainmodel.PayoutRequest
		err error
	)
	switch {
	case cb.IdempotencyKey != "":
		m, err = payoutDao.GetRequestByKey(cb.IdempotencyKey)
	case cb.TransferID != "":
		m, err = payoutDao.GetRequestByTransferID(cb.TransferID)
	default:
		return nil, constant.Errorf(constant.CodeMissingParams, "idempotencyKey or transferId required")
	}
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load payout")
	}
	if m == nil {
		return nil, constant.Errorf(constant.CodeRecordNotFound, "payout for transfer %s/%s not found", cb.IdempotencyKey, cb.TransferID)
	}

	succeeded := cb.Status == string(transfer.StatusSucceeded)
	if !succeeded && cb.Status != string(transfer.StatusFailed) {
		return nil, constant.Errorf(constant.CodeInvalidParams, "callback status %q unsupported", cb.Status)
	}
	switch {
	case (m.Status == dto.PayoutProcessing || m.Status == dto.PayoutBatched) && succeeded:
		err = s.complete(ctx, m, cb.TransferID)
	case (m.Status == dto.PayoutProcessing || m.Status == dto.PayoutBatched) && !succeeded:
		reason := cb.Reason
		if reason == "" {
			reason = "declined by processor"
		}
		err = s.fail(ctx, m, truncate(reason, 255))
	case m.Status == dto.PayoutFailed && dto.OutcomeUnknown(m.FailureReason) && succeeded:
		err = s.lateSuccess(ctx, m, cb.TransferID)
	}
	if err != nil {
		return nil, err
	}
	if m.BatchID != nil {
		if _, err := s.refreshBatch(ctx, *m.BatchID); err != nil {
			return nil, err
		}
	}
	latest, err := payoutDao.GetRequest(m.ID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "reload payout")
	}
	return toPayoutVo(latest), nil
}

// RetryRequest 运营手动重试失败申请：重新冻结后回到 requested，由下一个批次带走
func (s *PayoutService) RetryRequest(ctx context.Context, requestID uint64) (*dto.PayoutVo, error) {
	payoutDao := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx))
	m, err := payoutDao.GetRequest(requestID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load payout")
	}
	if m == nil {
		return nil, constant.Errorf(constant.CodeRecordNotFound, "payout %d not found", requestID)
	}
	if m.Status != dto.PayoutFailed {
		return nil, constant.Errorf(constant.CodePayoutStatusInvalid, "payout %d is %s, only failed can be retried", requestID, m.Status)
	}

	unlock := s.ledger.Lock(m.UserID, m.Role)
	defer unlock()

	attempt := m.Attempt + 1
	key := m.IdempotencyKey
	if !dto.OutcomeUnknown(m.FailureReason) {
		// 明确被拒绝的转账换新键，否则渠道会直接返回上次的失败结果
		key = idempotencyKey(m.ID, attempt)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.ApplyTx(tx, dto.LedgerMutation{
			UserID: m.UserID, Role: m.Role, Currency: m.Currency, Type: dto.LedgerTypeReserve,
			Amount: m.Amount, RefNo: payoutRef(m.ID), Description: "payout retry",
		}); err != nil {
			return err
		}
		ok, err := dao.NewPayoutDaoWithDB(tx).UpdateRequest(m.ID, dto.PayoutFailed, map[string]interface{}{
			"status": dto.PayoutRequested, "attempt": attempt, "idempotency_key": key,
			"failure_reason": "", "batch_id": nil, "processed_at": nil, "transfer_id": "",
		})
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "retry payout %d", m.ID)
		}
		if !ok {
			return constant.Errorf(constant.CodePayoutStatusInvalid, "payout %d changed concurrently", m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	latest, err := payoutDao.GetRequest(m.ID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "reload payout")
	}
	logger.Biz().WithFields(map[string]interface{}{"payout": m.ID, "attempt": attempt}).Info("payout retry queued")
	return toPayoutVo(latest), nil
}

// BulkPayout 后台“立即打款”：强制开批次并提交所有未结清批次
func (s *PayoutService) BulkPayout(ctx context.Context) ([]dto.BatchResult, error) {
	if _, err := s.OpenBatch(ctx, true); err != nil {
		return nil, err
	}
	batches, _, err := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx)).ListBatches(
		[]string{dto.BatchOpen, dto.BatchSubmitted, dto.BatchPartiallySettled}, 100, 0)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "list batches")
	}
	out := make([]dto.BatchResult, 0, len(batches))
	for i := len(batches) - 1; i >= 0; i-- {
		res, err := s.SubmitBatch(ctx, batches[i].ID)
		if err != nil {
			if errors.Is(err, constant.NewError(constant.CodeBatchBusy)) {
				continue
			}
			return out, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// refreshBatch 按成员状态推导批次状态
func (s *PayoutService) refreshBatch(ctx context.Context, batchID uint64) (*mainmodel.PayoutBatch, error) {
	payoutDao := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx))
	batch, err := payoutDao.GetBatch(batchID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load batch %d", batchID)
	}
	if batch == nil {
		return nil, constant.Errorf(constant.CodeBatchNotFound, "batch %d not found", batchID)
	}
	if batch.Status == dto.BatchOpen {
		return batch, nil
	}
	counts, err := payoutDao.CountMembersByStatus(batchID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "count batch members")
	}
	inFlight := counts[dto.PayoutBatched] + counts[dto.PayoutProcessing]
	update := map[string]interface{}{}
	if inFlight > 0 {
		update["status"] = dto.BatchPartiallySettled
	} else if batch.Status != dto.BatchSettled {
		update["status"] = dto.BatchSettled
		update["settled_at"] = s.now()
	}
	if len(update) > 0 {
		if err := payoutDao.UpdateBatch(batchID, update); err != nil {
			return nil, constant.Wrap(constant.CodeDatabaseError, err, "update batch status")
		}
	}
	return payoutDao.GetBatch(batchID)
}

func (s *PayoutService) publish(ctx context.Context, m *mainmodel.PayoutRequest, reason string) {
	if s.events == nil {
		return
	}
	evt := dto.PayoutEvent{
		RequestID: m.ID, UserID: m.UserID, Role: m.Role, Amount: m.Amount, Currency: m.Currency,
		Status: m.Status, TransferID: m.TransferID, FailureReason: reason, At: s.now().Unix(),
	}
	if err := s.events.PublishPayoutEvent(ctx, evt); err != nil {
		logger.Biz().WithError(err).WithField("payout", m.ID).Warn("publish payout event failed")
	}
}

func (s *PayoutService) observe(ctx context.Context, success bool) {
	if s.health == nil {
		return
	}
	rate, degraded := s.health.Observe(ctx, s.provider, success)
	if degraded {
		s.notifier.Notify(notify.LevelError, "transfer provider success rate degraded", map[string]string{
			"provider":     s.provider,
			"success_rate": fmt.Sprintf("%.1f", rate),
			"threshold":    fmt.Sprintf("%.1f", s.health.Threshold),
		})
	}
}

func (s *PayoutService) alertFailures(ctx context.Context, batch *mainmodel.PayoutBatch, res *dto.BatchResult) {
	day := timeutil.FormatDate(s.now())
	total := int64(res.Failed)
	if s.rdb != nil {
		key := rediskey.TransferFailCounterKey(day)
		if n, err := s.rdb.IncrBy(ctx, key, int64(res.Failed)).Result(); err == nil {
			total = n
			s.rdb.Expire(ctx, key, 7*24*time.Hour)
		}
	}
	s.notifier.Notify(notify.LevelWarn, "payout batch finished with failures", map[string]string{
		"batch":        batch.BatchNo,
		"status":       batch.Status,
		"failed":       fmt.Sprint(res.Failed),
		"completed":    fmt.Sprint(res.Completed),
		"failed_today": fmt.Sprint(total),
		"batch_amount": utils.Cents(batch.TotalAmount).String(),
	})
}

// ListUserPayouts 用户提现记录
func (s *PayoutService) ListUserPayouts(ctx context.Context, userID uint64, role string, page, size int) ([]dto.PayoutVo, int64, error) {
	page, size = utils.NormalizePage(page, size)
	rows, total, err := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx)).ListRequestsByUser(userID, role, size, (page-1)*size)
	if err != nil {
		return nil, 0, constant.Wrap(constant.CodeDatabaseError, err, "list payouts")
	}
	out := make([]dto.PayoutVo, 0, len(rows))
	for i := range rows {
		out = append(out, *toPayoutVo(&rows[i]))
	}
	return out, total, nil
}

func (s *PayoutService) ListBatches(ctx context.Context, status string, page, size int) ([]dto.BatchVo, int64, error) {
	page, size = utils.NormalizePage(page, size)
	var statuses []string
	if status != "" {
		statuses = []string{status}
	}
	rows, total, err := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx)).ListBatches(statuses, size, (page-1)*size)
	if err != nil {
		return nil, 0, constant.Wrap(constant.CodeDatabaseError, err, "list batches")
	}
	out := make([]dto.BatchVo, 0, len(rows))
	for i := range rows {
		out = append(out, toBatchVo(&rows[i]))
	}
	return out, total, nil
}

// Summary 后台汇总：处理中总额、各状态数量
func (s *PayoutService) Summary(ctx context.Context) (*dto.PayoutSummary, error) {
	db := s.db.WithContext(ctx)
	available, pending, err := dao.NewLedgerDaoWithDB(db).SumBalances()
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "sum balances")
	}
	stats, err := dao.NewPayoutDaoWithDB(db).StatusSummary()
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "payout stats")
	}
	_, open, err := dao.NewPayoutDaoWithDB(db).ListBatches([]string{dto.BatchOpen, dto.BatchSubmitted, dto.BatchPartiallySettled}, 1, 0)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "count batches")
	}
	return &dto.PayoutSummary{TotalPendingPayout: pending, TotalAvailable: available, ByStatus: stats, OpenBatches: open}, nil
}

// DueForWindow 当前是打款日且该窗口还没有定时批次
func (s *PayoutService) DueForWindow(ctx context.Context) (bool, error) {
	now := s.now()
	if !timeutil.IsPayoutWindow(now, s.opts.WindowDays) {
		return false, nil
	}
	n, err := dao.NewPayoutDaoWithDB(s.db.WithContext(ctx)).CountBatchesForWindow(timeutil.FormatDate(now))
	if err != nil {
		return false, constant.Wrap(constant.CodeDatabaseError, err, "count window batches")
	}
	return n == 0, nil
}
