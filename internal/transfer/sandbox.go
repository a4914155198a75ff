package transfer

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Sandbox 本地联调用，按收款账户前缀模拟结果：
// fail: 拒绝，slow: 一直等到超时，pending: 受理中，其余成功。同一幂等键返回同一结果。
type Sandbox struct {
	mu    sync.Mutex
	seen  map[string]*Result
	calls int
}

func NewSandbox() *Sandbox {
	return &Sandbox{seen: make(map[string]*Result)}
}

func (s *Sandbox) Transfer(ctx context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	s.calls++
	if r, ok := s.seen[req.IdempotencyKey]; ok && r.Status != StatusProcessing {
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	var res *Result
	switch {
	case strings.HasPrefix(req.Destination, "slow:"):
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case strings.HasPrefix(req.Destination, "fail:"):
		res = &Result{Status: StatusFailed, Reason: "destination rejected"}
	case strings.HasPrefix(req.Destination, "pending:"):
		res = &Result{Status: StatusProcessing, TransferID: "sbx_" + req.IdempotencyKey}
	default:
		res = &Result{Status: StatusSucceeded, TransferID: "sbx_" + req.IdempotencyKey}
	}

	s.mu.Lock()
	s.seen[req.IdempotencyKey] = res
	s.mu.Unlock()
	return res, nil
}

// Calls 调用次数
func (s *Sandbox) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
