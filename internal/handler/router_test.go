package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mkt-settle-api/internal/constant"
	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/idgen"
	"mkt-settle-api/internal/middleware"
	"mkt-settle-api/internal/service"
	"mkt-settle-api/internal/settlement"
	"mkt-settle-api/internal/transfer"
)

const (
	internalToken = "itok"
	adminToken    = "atok"
	webhookSecret = "whsec"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := idgen.InitNode(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newServer(t *testing.T) *gin.Engine {
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

	fee := settlement.FeeConfiguration{
		Version:                 1,
		AffiliateIsPercentOfAsk: true,
		PlatformFeePercent:      decimal.NewFromInt(10),
		ReferralOverridePercent: decimal.NewFromInt(5),
		ProcessorPercent:        decimal.RequireFromString("2.9"),
		ProcessorFixedFee:       30,
		Currency:                "USD",
	}
	ledger := service.NewLedgerService(db)
	fees := service.NewFeeService(db, nil, fee)
	require.NoError(t, fees.Register(context.Background()))
	payouts := service.NewPayoutService(db, ledger, transfer.NewSandbox(), service.PayoutOptions{
		MinimumThreshold: 2500,
		WindowDays:       []int{1, 15},
		Workers:          2,
		TransferTimeout:  time.Second,
		MaxAttempts:      3,
		StaleProcessing:  time.Hour,
	}, "USD")

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	r := gin.New()
	r.Use(middleware.RequestLogger(quiet), middleware.Recover())
	Register(r, Deps{
		Settlement:    service.NewSettlementService(db, ledger, fees, 0, 1),
		Ledger:        ledger,
		Payout:        payouts,
		WebhookSecret: webhookSecret,
		InternalAuth:  middleware.TokenAuth(middleware.InternalTokenHeader, internalToken, nil),
		AdminAuth:     middleware.TokenAuth(middleware.AdminTokenHeader, adminToken, nil),
	})
	return r
}

type envelope struct {
	Code    int             `json:"code"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

func call(t *testing.T, r http.Handler, method, path string, body interface{}, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

var (
	internalHeaders = map[string]string{middleware.InternalTokenHeader: internalToken}
	adminHeaders    = map[string]string{middleware.AdminTokenHeader: adminToken}
)

func confirmBody(id string) map[string]interface{} {
	return map[string]interface{}{
		"saleId":      id,
		"sellerId":    100,
		"productAsk":  3000,
		"affiliateId": 200,
		"commissionTerms": map[string]interface{}{
			"commissionType": "percentage",
			"commissionRate": "20",
		},
	}
}

func TestQuote(t *testing.T) {
	r := newServer(t)
	status, env := call(t, r, http.MethodGet, "/api/v1/quote?askPrice=2000&commissionType=percentage&commissionRate=20", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var q struct {
		FinalPrice int64  `json:"finalPrice"`
		Display    string `json:"display"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, int64(2709), q.FinalPrice)
	assert.Equal(t, "27.09", q.Display)
	assert.NotEmpty(t, env.TraceID)

	status, env = call(t, r, http.MethodGet, "/api/v1/quote?askPrice=2000&commissionType=percentage&commissionRate=150", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, constant.CodeInvalidParams, env.Code)
}

func TestSaleToPayoutFlow(t *testing.T) {
	r := newServer(t)

	status, _ := call(t, r, http.MethodPost, "/internal/v1/sales/confirm", confirmBody("S-1"), nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := call(t, r, http.MethodPost, "/internal/v1/sales/confirm", confirmBody("S-1"), internalHeaders)
	require.Equal(t, http.StatusOK, status, env.Detail)

	status, _ = call(t, r, http.MethodGet, "/api/v1/sales/S-1/breakdown", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	status, env = call(t, r, http.MethodGet, "/api/v1/sales/nope/breakdown", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = call(t, r, http.MethodGet, "/api/v1/ledgers/100/seller", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var snap struct {
		AvailableBalance int64 `json:"availableBalance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, int64(3000), snap.AvailableBalance)

	payoutBody := map[string]interface{}{"userId": 100, "role": "seller", "destination": "attacker-acct"}
	status, _ = call(t, r, http.MethodPost, "/internal/v1/payouts", payoutBody, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payouts", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	status, _ = call(t, r, http.MethodGet, "/internal/v1/payouts?userId=100&role=seller", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = call(t, r, http.MethodPost, "/internal/v1/payouts", map[string]interface{}{
		"userId": 100, "role": "seller", "destination": "acct-100",
	}, internalHeaders)
	require.Equal(t, http.StatusOK, status, env.Detail)

	status, env = call(t, r, http.MethodPost, "/internal/v1/payouts", map[string]interface{}{
		"userId": 100, "role": "seller",
	}, internalHeaders)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, constant.CodeBalanceInsufficient, env.Code)

	status, _ = call(t, r, http.MethodPost, "/admin/v1/payouts/bulk", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, env = call(t, r, http.MethodPost, "/admin/v1/payouts/bulk", nil, adminHeaders)
	require.Equal(t, http.StatusOK, status, env.Detail)

	status, env = call(t, r, http.MethodGet, "/internal/v1/payouts?userId=100&role=seller", nil, internalHeaders)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		List []struct {
			Status string `json:"status"`
		} `json:"list"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.List, 1)
	assert.Equal(t, "completed", list.List[0].Status)

	status, _ = call(t, r, http.MethodPost, "/admin/v1/ledgers/reconcile", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, r, http.MethodGet, "/admin/v1/sales/S-1/verify", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, status)

	// 已打款后冲正，卖家余额不足，整体拒绝
	status, env = call(t, r, http.MethodPost, "/internal/v1/sales/S-1/reverse", map[string]string{"reason": "refund"}, internalHeaders)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, constant.CodeBalanceInsufficient, env.Code)
}

func TestAdminBatchEndpoints(t *testing.T) {
	r := newServer(t)

	status, env := call(t, r, http.MethodPost, "/admin/v1/batches/abc/submit", nil, adminHeaders)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, constant.CodeParamsFormatError, env.Code)

	status, env = call(t, r, http.MethodPost, "/admin/v1/batches/12345/submit", nil, adminHeaders)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, constant.CodeBatchNotFound, env.Code)

	status, _ = call(t, r, http.MethodPost, "/admin/v1/payouts/999/retry", nil, adminHeaders)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, r, http.MethodGet, "/admin/v1/batches?status=settled", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, r, http.MethodGet, "/admin/v1/payouts/summary", nil, adminHeaders)
	assert.Equal(t, http.StatusOK, status)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayWebhook(t *testing.T) {
	r := newServer(t)
	body := []byte(`{"event":"transfer.processed","payload":{"transfer":{"entity":{"id":"trf_x","notes":{"idempotency_key":"po_1_1"}}}}}`)

	status, _ := call(t, r, http.MethodPost, "/webhooks/razorpay", body, map[string]string{razorpaySignatureHeader: "bad"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := call(t, r, http.MethodPost, "/webhooks/razorpay", body, map[string]string{razorpaySignatureHeader: sign(body)})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, constant.CodeRecordNotFound, env.Code)

	ignored := []byte(`{"event":"payment.captured","payload":{}}`)
	status, _ = call(t, r, http.MethodPost, "/webhooks/razorpay", ignored, map[string]string{razorpaySignatureHeader: sign(ignored)})
	assert.Equal(t, http.StatusOK, status)
}
