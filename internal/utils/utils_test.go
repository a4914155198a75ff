package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkt-settle-api/internal/constant"
)

func TestCents(t *testing.T) {
	assert.Equal(t, "27.09", Cents(2709).String())
	assert.Equal(t, "0.05", Cents(5).String())
	assert.Equal(t, "0.00", Cents(0).String())

	assert.Equal(t, Cents(200), PercentOf(2000, decimal.NewFromInt(10)))
	// 2709 * 2.9% = 78.561
	assert.Equal(t, Cents(79), PercentOf(2709, decimal.RequireFromString("2.9")))
	assert.Equal(t, Cents(1), RoundHalfUp(decimal.RequireFromString("0.5")))
	assert.Equal(t, Cents(0), RoundHalfUp(decimal.RequireFromString("0.49")))
	assert.Equal(t, Cents(2709), SumCents(2000, 400, 200, 79, 30))
}

func TestNormalizePage(t *testing.T) {
	p, s := NormalizePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, 20, s)

	p, s = NormalizePage(3, 50)
	assert.Equal(t, 3, p)
	assert.Equal(t, 50, s)

	_, s = NormalizePage(1, 500)
	assert.Equal(t, 20, s)
}

func TestErrorFrom(t *testing.T) {
	resp := ErrorFrom(constant.Errorf(constant.CodeBalanceInsufficient, "available 10.00"))
	assert.Equal(t, constant.CodeBalanceInsufficient, resp.Code)
	assert.Equal(t, "available 10.00", resp.Detail)

	// 系统错误不透出底层原因
	resp = ErrorFrom(constant.Wrap(constant.CodeDatabaseError, errors.New("dial tcp 10.0.0.3:3306"), "load ledger"))
	assert.Equal(t, constant.CodeDatabaseError, resp.Code)
	assert.Empty(t, resp.Detail)

	resp = ErrorFrom(errors.New("boom"))
	assert.Equal(t, constant.CodeSystemError, resp.Code)
}

func TestDoWithRetry(t *testing.T) {
	calls := 0
	err := DoWithRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = DoWithRetry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = DoWithRetry(ctx, 5, time.Second, func() error { return errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}
