package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"
	"github.com/razorpay/razorpay-go/utils"

	"mkt-settle-api/internal/dto"
)

// transferAPI razorpay SDK 的 Transfer 资源，测试时替换
type transferAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay 直接转账到子商户账户（Route transfers）
type Razorpay struct {
	api transferAPI
}

// sdkHTTPTimeout 只用来回收挂住的连接，必须大于 payout.transferTimeoutSec，由调用方 ctx 决定何时放弃
const sdkHTTPTimeout = 2 * time.Minute

func NewRazorpay(keyID, keySecret string) *Razorpay {
	client := razorpay.NewClient(keyID, keySecret)
	// SDK 默认 10s 超时，比 ctx 短，会把处理中的转账报成网络错误
	client.Transfer.Request.HTTPClient = &http.Client{
		Timeout:   sdkHTTPTimeout,
		Transport: statusGuard{base: http.DefaultTransport},
	}
	return &Razorpay{api: client.Transfer}
}

// statusGuard 5xx/429 不交给 SDK 解析：SDK 会把无 internal_error_code 的响应都当成 BadRequestError
type statusGuard struct {
	base http.RoundTripper
}

type upstreamStatusError struct {
	code int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("razorpay upstream status %d", e.code)
}

func (g statusGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, &upstreamStatusError{code: resp.StatusCode}
	}
	return resp, nil
}

// classifyError 只有渠道明确返回的 4xx 才算拒绝；网络错误、超时、5xx 结果未知，按超时处理，同一幂等键重试
func classifyError(err error) (*Result, error) {
	var bad *rzperrors.BadRequestError
	if errors.As(err, &bad) && bad.Message != "" {
		return &Result{Status: StatusFailed, Reason: bad.Error()}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
}

type rzpOutcome struct {
	resp map[string]interface{}
	err  error
}

// Transfer SDK 不支持 context，超时后放弃等待，由幂等键保证重试安全
func (r *Razorpay) Transfer(ctx context.Context, req Request) (*Result, error) {
	notes := map[string]interface{}{"idempotency_key": req.IdempotencyKey}
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"account":  req.Destination,
		"amount":   int64(req.Amount),
		"currency": req.Currency,
		"notes":    notes,
	}
	headers := map[string]string{"X-Transfer-Idempotency": req.IdempotencyKey}

	done := make(chan rzpOutcome, 1)
	go func() {
		resp, err := r.api.Create(data, headers)
		done <- rzpOutcome{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return classifyError(out.err)
		}
		return parseRazorpayTransfer(out.resp), nil
	}
}

func parseRazorpayTransfer(resp map[string]interface{}) *Result {
	res := &Result{}
	if id, ok := resp["id"].(string); ok {
		res.TransferID = id
	}
	status, _ := resp["status"].(string)
	switch status {
	case "processed":
		res.Status = StatusSucceeded
	case "failed", "reversed":
		res.Status = StatusFailed
		res.Reason = "transfer " + status
		if e, ok := resp["error"].(map[string]interface{}); ok {
			if d, ok := e["description"].(string); ok && d != "" {
				res.Reason = d
			}
		}
	default:
		res.Status = StatusProcessing
	}
	return res
}

// VerifyWebhook 校验 X-Razorpay-Signature
func VerifyWebhook(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, secret)
}

type rzpWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Transfer struct {
			Entity struct {
				ID     string            `json:"id"`
				Status string            `json:"status"`
				Notes  map[string]string `json:"notes"`
				Error  struct {
					Description string `json:"description"`
				} `json:"error"`
			} `json:"entity"`
		} `json:"transfer"`
	} `json:"payload"`
}

// ParseWebhook transfer.processed / transfer.failed / transfer.reversed 转成回调；其它事件返回 nil
func ParseWebhook(body []byte) (*dto.TransferCallback, error) {
	var w rzpWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("webhook body invalid: %w", err)
	}
	e := w.Payload.Transfer.Entity
	cb := &dto.TransferCallback{TransferID: e.ID, IdempotencyKey: e.Notes["idempotency_key"]}
	switch w.Event {
	case "transfer.processed":
		cb.Status = string(StatusSucceeded)
	case "transfer.failed", "transfer.reversed":
		cb.Status = string(StatusFailed)
		cb.Reason = e.Error.Description
		if cb.Reason == "" {
			cb.Reason = w.Event
		}
	default:
		return nil, nil
	}
	return cb, nil
}
