package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnique(t *testing.T) {
	require.NoError(t, InitNode(7))
	seen := make(map[uint64]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := New()
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Error(t, InitNode(1024))
}

func TestBatchNo(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	assert.Equal(t, "PB20260314-42", BatchNo(time.Date(2026, 3, 15, 6, 0, 0, 0, loc), 42))
}
