package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"mkt-settle-api/internal/config"
)

func TestFormatAlert(t *testing.T) {
	text := FormatAlert(LevelWarn, "batch PB-1 finished", map[string]string{
		"failed": "2",
		"amount": "55.00",
		"empty":  "",
	})
	assert.Contains(t, text, "*\\[WARN\\] batch PB\\-1 finished*")
	assert.Contains(t, text, "amount: 55\\.00")
	assert.Contains(t, text, "failed: 2")
	assert.NotContains(t, text, "empty")
	assert.Less(t, strings.Index(text, "amount"), strings.Index(text, "failed"))
}

func TestNew_DisabledIsNoop(t *testing.T) {
	assert.IsType(t, Noop{}, New(config.TelegramCfg{Enabled: false}))
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	assert.IsType(t, Noop{}, New(config.TelegramCfg{Enabled: true, ChatID: 1}))
}
