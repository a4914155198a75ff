package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/dto"
	"mkt-settle-api/internal/idgen"
	"mkt-settle-api/internal/settlement"
)

const platformAccount = uint64(1)

func TestMain(m *testing.M) {
	if err := idgen.InitNode(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestDB 每个用例独立的内存库，单连接保证同一个 :memory: 实例
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, dal.Migrate(db))
	return db
}

func testFee() settlement.FeeConfiguration {
	return settlement.FeeConfiguration{
		Version:                 1,
		AffiliateIsPercentOfAsk: true,
		PlatformFeePercent:      decimal.NewFromInt(10),
		ReferralOverridePercent: decimal.NewFromInt(5),
		ProcessorPercent:        decimal.RequireFromString("2.9"),
		ProcessorFixedFee:       30,
		Currency:                "USD",
	}
}

type fixture struct {
	db         *gorm.DB
	ledger     *LedgerService
	fees       *FeeService
	settlement *SettlementService
}

func newFixture(t *testing.T, holdHours int) *fixture {
	t.Helper()
	db := newTestDB(t)
	ledger := NewLedgerService(db)
	fees := NewFeeService(db, nil, testFee())
	require.NoError(t, fees.Register(context.Background()))
	return &fixture{
		db:         db,
		ledger:     ledger,
		fees:       fees,
		settlement: NewSettlementService(db, ledger, fees, holdHours, platformAccount),
	}
}

// credit 直接给账户入账，模拟已结算的分账
func (f *fixture) credit(t *testing.T, userID uint64, role string, amount int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), dto.LedgerMutation{
		UserID: userID, Role: role, Currency: "USD", Type: dto.LedgerTypeCredit, Amount: amount, RefNo: "seed",
	})
	require.NoError(t, err)
}

func (f *fixture) snapshot(t *testing.T, userID uint64, role string) *dto.LedgerSnapshot {
	t.Helper()
	snap, err := f.ledger.Snapshot(context.Background(), userID, role)
	require.NoError(t, err)
	return snap
}

func uid(v uint64) *uint64 { return &v }
