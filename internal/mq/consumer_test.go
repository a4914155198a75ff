package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dto"
)

type fakeConfirmer struct {
	got []dto.SaleConfirmedEvent
	err error
}

func (f *fakeConfirmer) ConfirmSale(_ context.Context, evt dto.SaleConfirmedEvent) (*dto.SaleResult, error) {
	f.got = append(f.got, evt)
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SaleResult{SaleID: evt.SaleID}, nil
}

type fakeCompleter struct {
	err error
}

func (f *fakeCompleter) CompleteTransfer(_ context.Context, cb dto.TransferCallback) (*dto.PayoutVo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.PayoutVo{ID: 1, Status: dto.PayoutCompleted}, nil
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(nil))
	assert.False(t, retryable(errPoison))
	assert.False(t, retryable(constant.Errorf(constant.CodeInvalidParams, "bad ask")))
	assert.False(t, retryable(constant.ErrInsufficientBalance))
	assert.True(t, retryable(constant.Wrap(constant.CodeDatabaseError, errors.New("conn reset"), "insert")))
	assert.True(t, retryable(errors.New("plain error")))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(amqp.Delivery{}))
	assert.Equal(t, 2, retryCount(amqp.Delivery{Headers: amqp.Table{retryHeader: int32(2)}}))
	assert.Equal(t, 3, retryCount(amqp.Delivery{Headers: amqp.Table{retryHeader: int64(3)}}))
}

func TestSaleConfirmedHandler(t *testing.T) {
	svc := &fakeConfirmer{}
	h := SaleConfirmedHandler(svc)

	err := h(context.Background(), []byte(`{"saleId":"S-1","sellerId":9,"productAsk":2000,"commissionTerms":{"commissionType":"percentage","commissionRate":"20"}}`))
	require.NoError(t, err)
	require.Len(t, svc.got, 1)
	assert.Equal(t, "S-1", svc.got[0].SaleID)
	assert.Equal(t, "20", svc.got[0].CommissionTerms.CommissionRate.String())

	err = h(context.Background(), []byte(`not json`))
	assert.True(t, errors.Is(err, errPoison))

	svc.err = constant.ErrValidation
	err = h(context.Background(), []byte(`{"saleId":"S-2"}`))
	assert.False(t, retryable(err))
}

func TestTransferCallbackHandler(t *testing.T) {
	h := TransferCallbackHandler(&fakeCompleter{})
	require.NoError(t, h(context.Background(), []byte(`{"transferId":"trf_1","status":"succeeded"}`)))

	h = TransferCallbackHandler(&fakeCompleter{err: constant.Wrap(constant.CodeDatabaseError, errors.New("locked"), "x")})
	err := h(context.Background(), []byte(`{"transferId":"trf_1","status":"succeeded"}`))
	assert.True(t, retryable(err))
}

func TestPayoutRoutingKey(t *testing.T) {
	assert.Equal(t, "payout.completed", PayoutRoutingKey(dto.PayoutCompleted))
}
