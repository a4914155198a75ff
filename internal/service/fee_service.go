package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dao"
	"mkt-settle-api/internal/logger"
	mainmodel "mkt-settle-api/internal/model/main"
	"mkt-settle-api/internal/settlement"
	rediskey "mkt-settle-api/internal/types/redis-key"
)

const feeCacheTTL = 24 * time.Hour

// FeeService 当前生效费率 + 历史版本查询
type FeeService struct {
	db      *gorm.DB
	rdb     *redis.Client
	current settlement.FeeConfiguration
	group   singleflight.Group
}

// NewFeeService rdb 可为 nil
func NewFeeService(db *gorm.DB, rdb *redis.Client, current settlement.FeeConfiguration) *FeeService {
	return &FeeService{db: db, rdb: rdb, current: current}
}

// Current 新销售使用的费率
func (s *FeeService) Current() settlement.FeeConfiguration {
	return s.current
}

// Register 启动时登记当前版本；同一版本号内容不同视为配置错误
func (s *FeeService) Register(ctx context.Context) error {
	if err := s.current.Validate(); err != nil {
		return err
	}
	content, err := json.Marshal(s.current)
	if err != nil {
		return err
	}
	feeDao := dao.NewFeeConfigDaoWithDB(s.db.WithContext(ctx))
	existing, err := feeDao.Get(s.current.Version)
	if err != nil {
		return constant.Wrap(constant.CodeDatabaseError, err, "load fee config")
	}
	if existing != nil {
		var stored settlement.FeeConfiguration
		if err := json.Unmarshal([]byte(existing.Content), &stored); err != nil {
			return constant.Wrap(constant.CodeConfigInvalid, err, "fee version %d stored content unreadable", existing.Version)
		}
		if !sameFee(stored, s.current) {
			return constant.Errorf(constant.CodeConfigInvalid,
				"fee version %d already registered with different values, bump fee.version", s.current.Version)
		}
		return nil
	}
	row := &mainmodel.FeeConfig{Version: s.current.Version, Content: string(content), CreateTime: time.Now().UTC()}
	if err := feeDao.Insert(row); err != nil {
		return constant.Wrap(constant.CodeDatabaseError, err, "register fee version %d", s.current.Version)
	}
	logger.Biz().WithField("version", s.current.Version).Info("fee config registered")
	return nil
}

func sameFee(a, b settlement.FeeConfiguration) bool {
	return a.Version == b.Version &&
		a.AffiliateIsPercentOfAsk == b.AffiliateIsPercentOfAsk &&
		a.PlatformFeePercent.Equal(b.PlatformFeePercent) &&
		a.ReferralOverridePercent.Equal(b.ReferralOverridePercent) &&
		a.ProcessorPercent.Equal(b.ProcessorPercent) &&
		a.ProcessorFixedFee == b.ProcessorFixedFee &&
		a.Currency == b.Currency
}

// ByVersion 历史销售复核用，redis 缓存 + singleflight 防击穿
func (s *FeeService) ByVersion(ctx context.Context, version int) (settlement.FeeConfiguration, error) {
	if version == s.current.Version {
		return s.current, nil
	}
	v, err, _ := s.group.Do(fmt.Sprintf("fee:%d", version), func() (interface{}, error) {
		if s.rdb != nil {
			cached, err := s.rdb.Get(ctx, rediskey.FeeConfigKey(version)).Result()
			if err == nil && cached != "" {
				var fee settlement.FeeConfiguration
				if json.Unmarshal([]byte(cached), &fee) == nil {
					return fee, nil
				}
			}
		}
		row, err := dao.NewFeeConfigDaoWithDB(s.db.WithContext(ctx)).Get(version)
		if err != nil {
			return nil, constant.Wrap(constant.CodeDatabaseError, err, "load fee version %d", version)
		}
		if row == nil {
			return nil, constant.Errorf(constant.CodeConfigNotFound, "fee version %d not registered", version)
		}
		var fee settlement.FeeConfiguration
		if err := json.Unmarshal([]byte(row.Content), &fee); err != nil {
			return nil, constant.Wrap(constant.CodeConfigInvalid, err, "fee version %d unreadable", version)
		}
		if s.rdb != nil {
			if err := s.rdb.Set(ctx, rediskey.FeeConfigKey(version), row.Content, feeCacheTTL).Err(); err != nil {
				logger.Biz().WithError(err).Warn("cache fee config failed")
			}
		}
		return fee, nil
	})
	if err != nil {
		return settlement.FeeConfiguration{}, err
	}
	return v.(settlement.FeeConfiguration), nil
}
