package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

func configFee(platform, referral, processor string) config.FeeCfg {
	return config.FeeCfg{
		Version:                 1,
		PlatformFeePercent:      platform,
		ReferralOverridePercent: referral,
		ProcessorPercent:        processor,
		ProcessorFixedFee:       30,
		Currency:                "usd",
	}
}

func TestDecompose_PercentageExample(t *testing.T) {
	b, err := ResolveAndDecompose(percentTerms(2000, "20"), testFee(), false)
	require.NoError(t, err)

	assert.Equal(t, utils.Cents(2709), b.FinalPrice)
	assert.Equal(t, utils.Cents(2000), b.SellerAmount)
	assert.Equal(t, utils.Cents(400), b.AffiliateAmount)
	assert.Equal(t, utils.Cents(200), b.PlatformGrossAmount)
	assert.Equal(t, utils.Cents(200), b.PlatformNetAmount)
	assert.Equal(t, utils.Cents(0), b.ReferralAffiliateAmount)
	assert.Equal(t, utils.Cents(79), b.ProcessorPercentAmount)
	assert.Equal(t, utils.Cents(30), b.ProcessorFixedAmount)
	assert.Equal(t, b.FinalPrice, b.Total())
	assert.Equal(t, 1, b.FeeVersion)
	assert.Equal(t, "USD", b.Currency)
}

func TestDecompose_ReferralCarvedFromPlatform(t *testing.T) {
	without, err := ResolveAndDecompose(percentTerms(2000, "20"), testFee(), false)
	require.NoError(t, err)
	with, err := ResolveAndDecompose(percentTerms(2000, "20"), testFee(), true)
	require.NoError(t, err)

	assert.Equal(t, without.FinalPrice, with.FinalPrice)
	assert.Equal(t, utils.Cents(10), with.ReferralAffiliateAmount)
	assert.Equal(t, utils.Cents(200), with.PlatformGrossAmount)
	assert.Equal(t, utils.Cents(190), with.PlatformNetAmount)
	assert.Equal(t, with.FinalPrice, with.Total())
}

func TestDecompose_KnownChargeResidualGoesToPlatform(t *testing.T) {
	b, err := Decompose(3000, percentTerms(2000, "20"), testFee(), true)
	require.NoError(t, err)

	assert.Equal(t, utils.Cents(2000), b.SellerAmount)
	assert.Equal(t, utils.Cents(400), b.AffiliateAmount)
	assert.Equal(t, utils.Cents(87), b.ProcessorPercentAmount)
	assert.Equal(t, utils.Cents(283), b.RoundingAdjustment)
	assert.Equal(t, utils.Cents(483), b.PlatformGrossAmount)
	// 推荐佣金按调整前的平台毛抽成计算
	assert.Equal(t, utils.Cents(10), b.ReferralAffiliateAmount)
	assert.Equal(t, utils.Cents(473), b.PlatformNetAmount)
	assert.Equal(t, utils.Cents(3000), b.Total())
}

func TestDecompose_RejectsInconsistentFinal(t *testing.T) {
	_, err := Decompose(1999, percentTerms(2000, "20"), testFee(), false)
	assert.ErrorIs(t, err, constant.ErrValidation)

	// 不小于要价，但不够覆盖佣金，平台净额会变负
	_, err = Decompose(2000, percentTerms(2000, "20"), testFee(), false)
	assert.ErrorIs(t, err, constant.ErrValidation)
}

func TestDecompose_ExactSumAcrossGrid(t *testing.T) {
	asks := []utils.Cents{0, 1, 7, 99, 100, 333, 1999, 2000, 2501, 12345, 99999, 1000001}
	rates := []string{"0", "1", "12.5", "20", "33.33", "50", "100"}
	processors := []string{"0", "1.5", "2.9", "3.49", "10", "49.99"}
	fixed := []utils.Cents{0, 1, 30, 250}

	for _, ask := range asks {
		for _, rate := range rates {
			for _, p := range processors {
				for _, fx := range fixed {
					fee := testFee()
					fee.ProcessorPercent = decimal.RequireFromString(p)
					fee.ProcessorFixedFee = fx
					for _, referral := range []bool{false, true} {
						b, err := ResolveAndDecompose(percentTerms(ask, rate), fee, referral)
						require.NoError(t, err, "ask=%d rate=%s p=%s fixed=%d", ask, rate, p, fx)
						require.Equal(t, b.FinalPrice, b.Total(), "ask=%d rate=%s p=%s fixed=%d", ask, rate, p, fx)
						require.Equal(t, ask, b.SellerAmount)
						require.Equal(t, b.PlatformGrossAmount-b.ReferralAffiliateAmount, b.PlatformNetAmount)
						require.GreaterOrEqual(t, int64(b.PlatformNetAmount), int64(0))
						require.NoError(t, Verify(b, percentTerms(ask, rate), fee, referral))
					}
				}
			}
		}
	}
}

func TestDecompose_ProcessorChangesOnlyFinalAndPlatform(t *testing.T) {
	terms := percentTerms(4321, "17.5")
	base, err := ResolveAndDecompose(terms, testFee(), true)
	require.NoError(t, err)

	for _, p := range []string{"0", "1", "3.5", "8", "25"} {
		for _, fx := range []utils.Cents{0, 15, 99} {
			fee := testFee()
			fee.ProcessorPercent = decimal.RequireFromString(p)
			fee.ProcessorFixedFee = fx
			b, err := ResolveAndDecompose(terms, fee, true)
			require.NoError(t, err)
			assert.Equal(t, base.SellerAmount, b.SellerAmount)
			assert.Equal(t, base.AffiliateAmount, b.AffiliateAmount)
			assert.Equal(t, base.ReferralAffiliateAmount, b.ReferralAffiliateAmount)
		}
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	terms := percentTerms(2000, "20")
	b, err := ResolveAndDecompose(terms, testFee(), true)
	require.NoError(t, err)
	require.NoError(t, Verify(b, terms, testFee(), true))

	tampered := b
	tampered.SellerAmount++
	tampered.PlatformGrossAmount--
	assert.ErrorIs(t, Verify(tampered, terms, testFee(), true), constant.NewError(constant.CodeBreakdownDrift))

	next := testFee()
	next.Version = 2
	assert.Error(t, Verify(b, terms, next, true))
}
