package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/utils"
)

func testFee() FeeConfiguration {
	return FeeConfiguration{
		Version:                 1,
		AffiliateIsPercentOfAsk: true,
		PlatformFeePercent:      decimal.NewFromInt(10),
		ReferralOverridePercent: decimal.NewFromInt(5),
		ProcessorPercent:        decimal.RequireFromString("2.9"),
		ProcessorFixedFee:       30,
		Currency:                "USD",
	}
}

func percentTerms(ask utils.Cents, rate string) CommissionTerms {
	return CommissionTerms{
		AskPrice:       ask,
		CommissionType: CommissionPercentage,
		CommissionRate: decimal.RequireFromString(rate),
		Currency:       "USD",
	}
}

func TestResolve_PercentageExample(t *testing.T) {
	final, err := Resolve(percentTerms(2000, "20"), testFee())
	require.NoError(t, err)
	// (2000 + 400 + 200 + 30) / 0.971 = 2708.547...
	assert.Equal(t, utils.Cents(2709), final)
}

func TestResolve_FlatRateIgnoresAsk(t *testing.T) {
	fee := testFee()
	terms := CommissionTerms{AskPrice: 2000, CommissionType: CommissionFlatRate, FlatCommissionAmount: 500, Currency: "USD"}

	b, err := ResolveAndDecompose(terms, fee, false)
	require.NoError(t, err)
	assert.Equal(t, utils.Cents(500), b.AffiliateAmount)
	assert.Equal(t, utils.Cents(2812), b.FinalPrice)

	terms.AskPrice = 5000
	b, err = ResolveAndDecompose(terms, fee, false)
	require.NoError(t, err)
	assert.Equal(t, utils.Cents(500), b.AffiliateAmount)
	assert.Equal(t, utils.Cents(5000), b.SellerAmount)
}

func TestResolve_ZeroAsk(t *testing.T) {
	final, err := Resolve(percentTerms(0, "20"), testFee())
	require.NoError(t, err)
	// 30 / 0.971 = 30.89
	assert.Equal(t, utils.Cents(31), final)
}

func TestResolve_NoProcessorFee(t *testing.T) {
	fee := testFee()
	fee.ProcessorPercent = decimal.Zero
	fee.ProcessorFixedFee = 0
	final, err := Resolve(percentTerms(2000, "20"), fee)
	require.NoError(t, err)
	assert.Equal(t, utils.Cents(2600), final)
}

func TestResolve_ConfigurationErrors(t *testing.T) {
	cases := map[string]func(f *FeeConfiguration){
		"processor 100":     func(f *FeeConfiguration) { f.ProcessorPercent = decimal.NewFromInt(100) },
		"processor 150":     func(f *FeeConfiguration) { f.ProcessorPercent = decimal.NewFromInt(150) },
		"negative platform": func(f *FeeConfiguration) { f.PlatformFeePercent = decimal.NewFromInt(-1) },
		"negative fixed":    func(f *FeeConfiguration) { f.ProcessorFixedFee = -1 },
		"referral over 100": func(f *FeeConfiguration) { f.ReferralOverridePercent = decimal.NewFromInt(101) },
		"zero version":      func(f *FeeConfiguration) { f.Version = 0 },
		"missing currency":  func(f *FeeConfiguration) { f.Currency = "" },
		"affiliate of final": func(f *FeeConfiguration) {
			f.AffiliateIsPercentOfAsk = false
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			fee := testFee()
			mutate(&fee)
			_, err := Resolve(percentTerms(2000, "20"), fee)
			require.Error(t, err)
			assert.ErrorIs(t, err, constant.ErrConfiguration)
		})
	}
}

func TestResolve_ValidationErrors(t *testing.T) {
	cases := map[string]CommissionTerms{
		"negative ask":   percentTerms(-1, "20"),
		"rate above 100": percentTerms(2000, "100.5"),
		"negative rate":  percentTerms(2000, "-3"),
		"negative flat":  {AskPrice: 2000, CommissionType: CommissionFlatRate, FlatCommissionAmount: -1},
		"unknown type":   {AskPrice: 2000, CommissionType: "tiered"},
	}
	for name, terms := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(terms, testFee())
			require.Error(t, err)
			assert.ErrorIs(t, err, constant.ErrValidation)
		})
	}
}

func TestFeeFromConfig(t *testing.T) {
	fee, err := FeeFromConfig(configFee("10", "5", "2.9"))
	require.NoError(t, err)
	assert.True(t, fee.ProcessorPercent.Equal(decimal.RequireFromString("2.9")))
	assert.Equal(t, utils.Cents(30), fee.ProcessorFixedFee)
	assert.Equal(t, "USD", fee.Currency)

	_, err = FeeFromConfig(configFee("ten", "5", "2.9"))
	assert.ErrorIs(t, err, constant.ErrConfiguration)

	_, err = FeeFromConfig(configFee("10", "5", "100"))
	assert.ErrorIs(t, err, constant.ErrConfiguration)
}

func TestParseCommissionType(t *testing.T) {
	for in, want := range map[string]CommissionType{
		"Percentage": CommissionPercentage,
		"percent":    CommissionPercentage,
		"FlatRate":   CommissionFlatRate,
		"flat_rate":  CommissionFlatRate,
	} {
		got, err := ParseCommissionType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseCommissionType("tiered")
	assert.ErrorIs(t, err, constant.ErrValidation)
}
