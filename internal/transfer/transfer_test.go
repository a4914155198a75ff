package transfer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	rzperrors "github.com/razorpay/razorpay-go/errors"
	"github.com/razorpay/razorpay-go/resources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/constant"
)

type mockTransferAPI struct {
	mock.Mock
}

func (m *mockTransferAPI) Create(data map[string]interface{}, headers map[string]string) (map[string]interface{}, error) {
	args := m.Called(data, headers)
	resp, _ := args.Get(0).(map[string]interface{})
	return resp, args.Error(1)
}

func TestRazorpay_StatusMapping(t *testing.T) {
	cases := []struct {
		resp   map[string]interface{}
		status Status
	}{
		{map[string]interface{}{"id": "trf_1", "status": "processed"}, StatusSucceeded},
		{map[string]interface{}{"id": "trf_2", "status": "pending"}, StatusProcessing},
		{map[string]interface{}{"id": "trf_3", "status": "failed", "error": map[string]interface{}{"description": "account suspended"}}, StatusFailed},
	}
	for _, c := range cases {
		api := new(mockTransferAPI)
		api.On("Create", mock.Anything, mock.Anything).Return(c.resp, nil).Once()
		r := &Razorpay{api: api}

		res, err := r.Transfer(context.Background(), Request{IdempotencyKey: "k", Destination: "acc_1", Amount: 2500, Currency: "USD"})
		require.NoError(t, err)
		assert.Equal(t, c.status, res.Status)
		assert.Equal(t, c.resp["id"], res.TransferID)
		api.AssertExpectations(t)
	}
}

func TestRazorpay_SendsIdempotencyKey(t *testing.T) {
	api := new(mockTransferAPI)
	api.On("Create", mock.MatchedBy(func(d map[string]interface{}) bool {
		notes := d["notes"].(map[string]interface{})
		return d["account"] == "acc_9" && d["amount"] == int64(3000) && notes["idempotency_key"] == "po_1_1"
	}), map[string]string{"X-Transfer-Idempotency": "po_1_1"}).
		Return(map[string]interface{}{"id": "trf_9", "status": "processed"}, nil)

	r := &Razorpay{api: api}
	_, err := r.Transfer(context.Background(), Request{IdempotencyKey: "po_1_1", Destination: "acc_9", Amount: 3000, Currency: "USD"})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestRazorpay_ErrorIsDecline(t *testing.T) {
	api := new(mockTransferAPI)
	api.On("Create", mock.Anything, mock.Anything).Return(nil, &rzperrors.BadRequestError{Message: "insufficient funds"})
	r := &Razorpay{api: api}

	res, err := r.Transfer(context.Background(), Request{IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "insufficient funds")
	assert.True(t, errors.Is(res.Err(), constant.ErrTransferFailed))
	assert.Nil(t, (&Result{Status: StatusSucceeded}).Err())
}

func TestRazorpay_Timeout(t *testing.T) {
	api := new(mockTransferAPI)
	api.On("Create", mock.Anything, mock.Anything).
		After(200*time.Millisecond).
		Return(map[string]interface{}{"status": "processed"}, nil)
	r := &Razorpay{api: api}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Transfer(ctx, Request{IdempotencyKey: "k"})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, errors.Is(err, constant.ErrTransferTimeout))
}

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

var _ net.Error = netTimeout{}

func TestRazorpay_UnknownOutcomeIsTimeout(t *testing.T) {
	cases := []error{
		&url.Error{Op: "Post", URL: "https://api.razorpay.com/v1/transfers", Err: netTimeout{}},
		&rzperrors.ServerError{Message: "internal error"},
		&rzperrors.GatewayError{Message: "bank unreachable"},
		&rzperrors.BadRequestError{},
		&url.Error{Op: "Post", URL: "https://api.razorpay.com/v1/transfers", Err: &upstreamStatusError{code: 503}},
	}
	for _, c := range cases {
		api := new(mockTransferAPI)
		api.On("Create", mock.Anything, mock.Anything).Return(nil, c).Once()
		r := &Razorpay{api: api}

		res, err := r.Transfer(context.Background(), Request{IdempotencyKey: "po_7_1"})
		require.Error(t, err, c.Error())
		assert.Nil(t, res)
		assert.True(t, IsTimeout(err), c.Error())
		assert.False(t, errors.Is(err, constant.ErrTransferFailed))
	}
}

func TestStatusGuard(t *testing.T) {
	codes := map[string]int{"/bad-gateway": http.StatusBadGateway, "/throttled": http.StatusTooManyRequests, "/bad-request": http.StatusBadRequest}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(codes[r.URL.Path])
		_, _ = w.Write([]byte(`{"error":{"description":"upstream"}}`))
	}))
	defer srv.Close()
	client := &http.Client{Transport: statusGuard{base: http.DefaultTransport}}

	_, err := client.Post(srv.URL+"/bad-gateway", "application/json", nil)
	require.Error(t, err)
	var se *upstreamStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.code)

	_, err = client.Post(srv.URL+"/throttled", "application/json", nil)
	assert.Error(t, err)

	resp, err := client.Post(srv.URL+"/bad-request", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"event":"transfer.failed","payload":{"transfer":{"entity":{"id":"trf_5","status":"failed","notes":{"idempotency_key":"po_5_2"},"error":{"description":"bank down"}}}}}`)
	cb, err := ParseWebhook(body)
	require.NoError(t, err)
	require.NotNil(t, cb)
	assert.Equal(t, "failed", cb.Status)
	assert.Equal(t, "trf_5", cb.TransferID)
	assert.Equal(t, "po_5_2", cb.IdempotencyKey)
	assert.Equal(t, "bank down", cb.Reason)

	cb, err = ParseWebhook([]byte(`{"event":"payment.captured","payload":{}}`))
	require.NoError(t, err)
	assert.Nil(t, cb)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"event":"transfer.processed"}`)
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyWebhook(body, sig, "whsec"))
	assert.False(t, VerifyWebhook(body, sig, "other"))
	assert.False(t, VerifyWebhook(body, "", "whsec"))
}

func TestSandbox(t *testing.T) {
	s := NewSandbox()
	ctx := context.Background()

	res, err := s.Transfer(ctx, Request{IdempotencyKey: "a", Destination: "acc_1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)

	again, err := s.Transfer(ctx, Request{IdempotencyKey: "a", Destination: "fail:acc_1"})
	require.NoError(t, err)
	assert.Equal(t, res, again)

	res, err = s.Transfer(ctx, Request{IdempotencyKey: "b", Destination: "fail:acc_2"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = s.Transfer(tctx, Request{IdempotencyKey: "c", Destination: "slow:acc_3"})
	assert.True(t, IsTimeout(err))
	assert.Equal(t, 4, s.Calls())
}

func TestNew(t *testing.T) {
	tr, err := New(config.TransferCfg{Provider: "sandbox"})
	require.NoError(t, err)
	assert.IsType(t, &Sandbox{}, tr)

	_, err = New(config.TransferCfg{Provider: "razorpay"})
	assert.Error(t, err)

	tr, err = New(config.TransferCfg{Provider: "razorpay", KeyID: "rzp_test", KeySecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &Razorpay{}, tr)
	rp := tr.(*Razorpay).api.(*resources.Transfer)
	assert.Greater(t, rp.Request.HTTPClient.Timeout, 15*time.Second)
	assert.IsType(t, statusGuard{}, rp.Request.HTTPClient.Transport)

	_, err = New(config.TransferCfg{Provider: "paypal"})
	assert.Error(t, err)
}
