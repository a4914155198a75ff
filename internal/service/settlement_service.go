package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dao"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/idgen"
	"mkt-settle-api/internal/logger"
	mainmodel "mkt-settle-api/internal/model/main"
	"mkt-settle-api/internal/settlement"
	"mkt-settle-api/internal/utils"
)

// SettlementService 销售确认 → 定价/拆分 → 分账记录 + 入账，一笔销售一个事务
type SettlementService struct {
	db         *gorm.DB
	ledger     *LedgerService
	fees       *FeeService
	hold       time.Duration
	platformID uint64
	now        func() time.Time
}

func NewSettlementService(db *gorm.DB, ledger *LedgerService, fees *FeeService, holdHours int, platformID uint64) *SettlementService {
	return &SettlementService{
		db:         db,
		ledger:     ledger,
		fees:       fees,
		hold:       time.Duration(holdHours) * time.Hour,
		platformID: platformID,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func termsFrom(ask int64, req dto.CommissionTermsReq, currency string) (settlement.CommissionTerms, error) {
	typ, err := settlement.ParseCommissionType(req.CommissionType)
	if err != nil {
		return settlement.CommissionTerms{}, err
	}
	terms := settlement.CommissionTerms{
		AskPrice:             utils.Cents(ask),
		CommissionType:       typ,
		CommissionRate:       req.CommissionRate,
		FlatCommissionAmount: utils.Cents(req.FlatCommissionAmount),
		Currency:             currency,
	}
	return terms, terms.Validate()
}

func optionalID(id *uint64) *uint64 {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

type share struct {
	recipient uint64
	role      string
	amount    int64
}

// shares 按收款方拆分；没有代理时代理佣金归平台，没有推荐人时推荐佣金为 0
func (s *SettlementService) shares(b settlement.PriceBreakdown, sellerID uint64, affiliateID, recruiterID *uint64) []share {
	platform := int64(b.PlatformNetAmount)
	out := []share{{sellerID, dto.RoleSeller, int64(b.SellerAmount)}}
	if affiliateID != nil {
		out = append(out, share{*affiliateID, dto.RoleAffiliate, int64(b.AffiliateAmount)})
	} else {
		platform += int64(b.AffiliateAmount)
	}
	if recruiterID != nil {
		out = append(out, share{*recruiterID, dto.RoleRecruiter, int64(b.ReferralAffiliateAmount)})
	}
	out = append(out, share{s.platformID, dto.RolePlatform, platform})

	kept := out[:0]
	for _, sh := range out {
		if sh.amount > 0 {
			kept = append(kept, sh)
		}
	}
	return kept
}

// ConfirmSale 处理 Sale Confirmed；同一 saleId 重复确认返回首次结果
func (s *SettlementService) ConfirmSale(ctx context.Context, evt dto.SaleConfirmedEvent) (*dto.SaleResult, error) {
	evt.SaleID = strings.TrimSpace(evt.SaleID)
	if evt.SaleID == "" || evt.SellerID == 0 {
		return nil, constant.Errorf(constant.CodeMissingParams, "saleId and sellerId are required")
	}
	saleDao := dao.NewSaleDaoWithDB(s.db.WithContext(ctx))
	if existing, err := saleDao.GetBySaleNo(evt.SaleID); err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load sale")
	} else if existing != nil {
		return s.result(ctx, existing, true)
	}

	fee := s.fees.Current()
	currency := strings.ToUpper(strings.TrimSpace(evt.Currency))
	if currency == "" {
		currency = fee.Currency
	}
	if currency != fee.Currency {
		return nil, constant.Errorf(constant.CodeInvalidParams, "sale currency %s differs from settlement currency %s", currency, fee.Currency)
	}
	terms, err := termsFrom(evt.ProductAsk, evt.CommissionTerms, currency)
	if err != nil {
		return nil, err
	}
	affiliateID, recruiterID := optionalID(evt.AffiliateID), optionalID(evt.RecruiterID)
	if affiliateID == nil {
		recruiterID = nil
	}
	referral := recruiterID != nil

	var breakdown settlement.PriceBreakdown
	if evt.BuyerChargeAlreadyKnown != nil {
		breakdown, err = settlement.Decompose(utils.Cents(*evt.BuyerChargeAlreadyKnown), terms, fee, referral)
	} else {
		breakdown, err = settlement.ResolveAndDecompose(terms, fee, referral)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	var snapshot mainmodel.BreakdownSnapshot
	if err := copier.Copy(&snapshot, &breakdown); err != nil {
		return nil, constant.Wrap(constant.CodeInternalError, err, "copy breakdown")
	}
	sale := &mainmodel.Sale{
		ID:             idgen.New(),
		SaleNo:         evt.SaleID,
		SellerID:       evt.SellerID,
		AffiliateID:    affiliateID,
		RecruiterID:    recruiterID,
		AskPrice:       int64(terms.AskPrice),
		CommissionType: string(terms.CommissionType),
		CommissionRate: terms.CommissionRate,
		FlatCommission: int64(terms.FlatCommissionAmount),
		FinalPrice:     int64(breakdown.FinalPrice),
		Currency:       currency,
		FeeVersion:     fee.Version,
		Breakdown:      snapshot,
		Status:         mainmodel.SaleStatusConfirmed,
		SettleAt:       now.Add(s.hold),
		CreateTime:     now,
		UpdateTime:     now,
	}
	var rows []mainmodel.Distribution
	for _, sh := range s.shares(breakdown, evt.SellerID, affiliateID, recruiterID) {
		rows = append(rows, mainmodel.Distribution{
			ID:          idgen.New(),
			SaleID:      sale.ID,
			SaleNo:      sale.SaleNo,
			RecipientID: sh.recipient,
			Role:        sh.role,
			Amount:      sh.amount,
			Status:      dto.DistributionPending,
			SettleAt:    sale.SettleAt,
			CreateTime:  now,
			UpdateTime:  now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txDao := dao.NewSaleDaoWithDB(tx)
		if err := txDao.Insert(sale); err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "insert sale %s", sale.SaleNo)
		}
		if err := txDao.InsertDistributions(rows); err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "insert distributions")
		}
		if s.hold <= 0 {
			return s.settleSaleTx(tx, sale, rows, now)
		}
		return nil
	})
	if err != nil {
		// 并发重复确认撞唯一索引
		if existing, qerr := saleDao.GetBySaleNo(evt.SaleID); qerr == nil && existing != nil {
			return s.result(ctx, existing, true)
		}
		return nil, err
	}
	logger.Biz().WithFields(map[string]interface{}{
		"sale": sale.SaleNo, "final": sale.FinalPrice, "fee_version": fee.Version, "rows": len(rows),
	}).Info("sale distributed")
	return s.result(ctx, sale, false)
}

// settleSaleTx pending → settled 并入账，调用方负责事务
func (s *SettlementService) settleSaleTx(tx *gorm.DB, sale *mainmodel.Sale, rows []mainmodel.Distribution, now time.Time) error {
	txDao := dao.NewSaleDaoWithDB(tx)
	for _, d := range rows {
		if d.Status != dto.DistributionPending || d.SettleAt.After(now) {
			continue
		}
		ok, err := txDao.UpdateDistributionStatus(d.ID, dto.DistributionPending, dto.DistributionSettled,
			map[string]interface{}{"settled_at": now})
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "settle distribution")
		}
		if !ok {
			continue
		}
		_, err = s.ledger.ApplyTx(tx, dto.LedgerMutation{
			UserID:      d.RecipientID,
			Role:        d.Role,
			Currency:    sale.Currency,
			Type:        dto.LedgerTypeCredit,
			Amount:      d.Amount,
			RefNo:       sale.SaleNo,
			Description: "sale " + d.Role + " share",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SettleDue 冻结期到期的分账入账，返回处理的销售数
func (s *SettlementService) SettleDue(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := dao.NewSaleDaoWithDB(s.db.WithContext(ctx)).DueSaleIDs(now, 500)
	if err != nil {
		return 0, constant.Wrap(constant.CodeDatabaseError, err, "query due distributions")
	}
	settled := 0
	for _, id := range ids {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txDao := dao.NewSaleDaoWithDB(tx)
			sale, err := txDao.GetByID(id)
			if err != nil {
				return err
			}
			if sale.Status != mainmodel.SaleStatusConfirmed {
				return nil
			}
			rows, err := txDao.ListDistributions(id)
			if err != nil {
				return err
			}
			return s.settleSaleTx(tx, sale, rows, now)
		})
		if err != nil {
			logger.Biz().WithError(err).WithField("sale_id", id).Error("settle due sale failed")
			continue
		}
		settled++
	}
	return settled, nil
}

// ReverseSale 退款冲正：pending 直接作废，settled 从可用余额扣回；余额不足整体失败
func (s *SettlementService) ReverseSale(ctx context.Context, saleNo, reason string) (*dto.SaleResult, error) {
	var sale *mainmodel.Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txDao := dao.NewSaleDaoWithDB(tx)
		var err error
		sale, err = txDao.GetBySaleNo(saleNo)
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "load sale")
		}
		if sale == nil {
			return constant.Errorf(constant.CodeRecordNotFound, "sale %s not found", saleNo)
		}
		now := s.now()
		ok, err := txDao.UpdateSaleStatus(sale.ID, mainmodel.SaleStatusConfirmed, mainmodel.SaleStatusReversed,
			map[string]interface{}{"reversed_at": now, "reverse_reason": truncate(reason, 128)})
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "reverse sale")
		}
		if !ok {
			return constant.Errorf(constant.CodeSaleReversed, "sale %s already reversed", saleNo)
		}
		rows, err := txDao.ListDistributions(sale.ID)
		if err != nil {
			return constant.Wrap(constant.CodeDatabaseError, err, "list distributions")
		}
		for _, d := range rows {
			switch d.Status {
			case dto.DistributionPending:
				if _, err := txDao.UpdateDistributionStatus(d.ID, dto.DistributionPending, dto.DistributionReversed,
					map[string]interface{}{"reversed_at": now}); err != nil {
					return constant.Wrap(constant.CodeDatabaseError, err, "reverse distribution")
				}
			case dto.DistributionSettled:
				ok, err := txDao.UpdateDistributionStatus(d.ID, dto.DistributionSettled, dto.DistributionReversed,
					map[string]interface{}{"reversed_at": now})
				if err != nil {
					return constant.Wrap(constant.CodeDatabaseError, err, "reverse distribution")
				}
				if !ok {
					continue
				}
				if _, err := s.ledger.ApplyTx(tx, dto.LedgerMutation{
					UserID:      d.RecipientID,
					Role:        d.Role,
					Currency:    sale.Currency,
					Type:        dto.LedgerTypeDebit,
					Amount:      d.Amount,
					RefNo:       sale.SaleNo,
					Description: "sale reversed",
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sale, err = dao.NewSaleDaoWithDB(s.db.WithContext(ctx)).GetBySaleNo(saleNo)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "reload sale")
	}
	logger.Biz().WithField("sale", saleNo).Info("sale reversed")
	return s.result(ctx, sale, false)
}

// GetSale 价格拆分与分账明细
func (s *SettlementService) GetSale(ctx context.Context, saleNo string) (*dto.SaleResult, error) {
	sale, err := dao.NewSaleDaoWithDB(s.db.WithContext(ctx)).GetBySaleNo(saleNo)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "load sale")
	}
	if sale == nil {
		return nil, constant.Errorf(constant.CodeRecordNotFound, "sale %s not found", saleNo)
	}
	return s.result(ctx, sale, false)
}

// VerifySale 用销售当时的费率版本复算拆分
func (s *SettlementService) VerifySale(ctx context.Context, saleNo string) error {
	sale, err := dao.NewSaleDaoWithDB(s.db.WithContext(ctx)).GetBySaleNo(saleNo)
	if err != nil {
		return constant.Wrap(constant.CodeDatabaseError, err, "load sale")
	}
	if sale == nil {
		return constant.Errorf(constant.CodeRecordNotFound, "sale %s not found", saleNo)
	}
	fee, err := s.fees.ByVersion(ctx, sale.FeeVersion)
	if err != nil {
		return err
	}
	terms := settlement.CommissionTerms{
		AskPrice:             utils.Cents(sale.AskPrice),
		CommissionType:       settlement.CommissionType(sale.CommissionType),
		CommissionRate:       sale.CommissionRate,
		FlatCommissionAmount: utils.Cents(sale.FlatCommission),
		Currency:             sale.Currency,
	}
	var b settlement.PriceBreakdown
	if err := copier.Copy(&b, &sale.Breakdown); err != nil {
		return constant.Wrap(constant.CodeInternalError, err, "copy breakdown")
	}
	return settlement.Verify(b, terms, fee, sale.RecruiterID != nil)
}

// Quote 结账前展示价
func (s *SettlementService) Quote(req dto.QuoteReq) (*dto.QuoteResp, error) {
	fee := s.fees.Current()
	terms, err := termsFrom(req.AskPrice, dto.CommissionTermsReq{
		CommissionType:       req.CommissionType,
		CommissionRate:       req.CommissionRate,
		FlatCommissionAmount: req.FlatCommissionAmount,
	}, strings.ToUpper(req.Currency))
	if err != nil {
		return nil, err
	}
	final, currency, err := settlement.Quote(terms, fee)
	if err != nil {
		return nil, err
	}
	return &dto.QuoteResp{FinalPrice: int64(final), Display: final.String(), Currency: currency, FeeVersion: fee.Version}, nil
}

func (s *SettlementService) result(ctx context.Context, sale *mainmodel.Sale, duplicate bool) (*dto.SaleResult, error) {
	rows, err := dao.NewSaleDaoWithDB(s.db.WithContext(ctx)).ListDistributions(sale.ID)
	if err != nil {
		return nil, constant.Wrap(constant.CodeDatabaseError, err, "list distributions")
	}
	b := sale.Breakdown
	res := &dto.SaleResult{
		SaleID:    sale.SaleNo,
		Duplicate: duplicate,
		Breakdown: dto.BreakdownVo{
			FinalPrice:              int64(b.FinalPrice),
			SellerAmount:            int64(b.SellerAmount),
			AffiliateAmount:         int64(b.AffiliateAmount),
			ReferralAffiliateAmount: int64(b.ReferralAffiliateAmount),
			PlatformGrossAmount:     int64(b.PlatformGrossAmount),
			PlatformNetAmount:       int64(b.PlatformNetAmount),
			ProcessorPercentAmount:  int64(b.ProcessorPercentAmount),
			ProcessorFixedAmount:    int64(b.ProcessorFixedAmount),
			RoundingAdjustment:      int64(b.RoundingAdjustment),
			FeeVersion:              b.FeeVersion,
			Currency:                b.Currency,
		},
		Distributions: make([]dto.DistributionVo, 0, len(rows)),
	}
	allSettled := len(rows) > 0
	for _, d := range rows {
		res.Distributions = append(res.Distributions, dto.DistributionVo{
			RecipientID: d.RecipientID, Role: d.Role, Amount: d.Amount, Status: d.Status,
			SettleAt: d.SettleAt, SettledAt: d.SettledAt,
		})
		if d.Status != dto.DistributionSettled {
			allSettled = false
		}
	}
	switch {
	case sale.Status == mainmodel.SaleStatusReversed:
		res.Status = dto.DistributionReversed
	case allSettled:
		res.Status = dto.DistributionSettled
	default:
		res.Status = dto.DistributionPending
	}
	return res, nil
}

// truncate 按字节上限截断，不切开多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
