package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mkt-settle-api/internal/dto"
)

type fakeSettler struct {
	calls int
	err   error
}

func (f *fakeSettler) SettleDue(context.Context) (int, error) {
	f.calls++
	return 1, f.err
}

type fakePayouts struct {
	due       bool
	batch     *dto.BatchVo
	partial   []dto.BatchVo
	opened    []bool
	submitted []uint64
}

func (f *fakePayouts) DueForWindow(context.Context) (bool, error) { return f.due, nil }

func (f *fakePayouts) OpenBatch(_ context.Context, forced bool) (*dto.BatchVo, error) {
	f.opened = append(f.opened, forced)
	return f.batch, nil
}

func (f *fakePayouts) SubmitBatch(_ context.Context, id uint64) (*dto.BatchResult, error) {
	f.submitted = append(f.submitted, id)
	return &dto.BatchResult{}, nil
}

func (f *fakePayouts) ListBatches(_ context.Context, status string, _, _ int) ([]dto.BatchVo, int64, error) {
	if status != dto.BatchPartiallySettled {
		return nil, 0, errors.New("unexpected status filter")
	}
	return f.partial, int64(len(f.partial)), nil
}

func TestTick_OutsideWindow(t *testing.T) {
	settle, payouts := &fakeSettler{}, &fakePayouts{}
	New(settle, payouts, time.Minute).Tick(context.Background())

	assert.Equal(t, 1, settle.calls)
	assert.Empty(t, payouts.opened)
	assert.Empty(t, payouts.submitted)
}

func TestTick_WindowOpensAndSubmits(t *testing.T) {
	settle := &fakeSettler{err: errors.New("db down")}
	payouts := &fakePayouts{due: true, batch: &dto.BatchVo{ID: 9}, partial: []dto.BatchVo{{ID: 3}}}
	New(settle, payouts, time.Minute).Tick(context.Background())

	assert.Equal(t, []bool{false}, payouts.opened)
	assert.Equal(t, []uint64{3, 9}, payouts.submitted)
}

func TestTick_NothingToBatch(t *testing.T) {
	payouts := &fakePayouts{due: true}
	New(&fakeSettler{}, payouts, time.Minute).Tick(context.Background())

	assert.Len(t, payouts.opened, 1)
	assert.Empty(t, payouts.submitted)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	settle := &fakeSettler{}
	done := make(chan struct{})
	go func() {
		New(settle, &fakePayouts{}, 10*time.Millisecond).Run(ctx)
		close(done)
	}()
	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, settle.calls, 2)
}
