package notify

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/utils/timeutil"
)

const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Notifier 运维告警
type Notifier interface {
	Notify(level, title string, fields map[string]string)
}

// Noop 未开启告警时使用
type Noop struct{}

func (Noop) Notify(string, string, map[string]string) {}

// Telegram 发到告警群，异步发送不阻塞打款流程
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// New telegram.enabled=false 或缺少 TELEGRAM_BOT_TOKEN 时返回 Noop
func New(c config.TelegramCfg) Notifier {
	if !c.Enabled {
		return Noop{}
	}
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Printf("[Notify] missing TELEGRAM_BOT_TOKEN, alerts disabled")
		return Noop{}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("[Notify] telegram init failed: %v", err)
		return Noop{}
	}
	log.Printf("[Notify] telegram bot %s, chat %d", bot.Self.UserName, c.ChatID)
	return &Telegram{bot: bot, chatID: c.ChatID}
}

func (t *Telegram) Notify(level, title string, fields map[string]string) {
	msg := tgbotapi.NewMessage(t.chatID, FormatAlert(level, title, fields))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	go func() {
		if _, err := t.bot.Send(msg); err != nil {
			log.Printf("Telegram 消息发送失败: %v", err)
		}
	}()
}

// FormatAlert MarkdownV2 文本，字段按 key 排序保证输出稳定
func FormatAlert(level, title string, fields map[string]string) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s) }

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*\\[%s\\] %s*\n", esc(level), esc(title)))
	sb.WriteString(fmt.Sprintf("*时间:* %s\n", esc(timeutil.FormatISO8601(timeutil.NowUTC()))))

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := fields[k]; v != "" {
			sb.WriteString(fmt.Sprintf("%s: %s\n", esc(k), esc(v)))
		}
	}
	return sb.String()
}
