package logger

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

var (
	bizOnce sync.Once
	biz     = logrus.New()
)

// NewLogger 按类型写 ./logs/<type>/，按天切割保留 7 天
func NewLogger(logType string) *logrus.Logger {
	log := logrus.New()
	logPath := "./logs/" + logType
	_ = os.MkdirAll(logPath, 0755)

	writer, err := rotatelogs.New(
		logPath+"/"+logType+".log.%Y-%m-%d",
		rotatelogs.WithLinkName(logPath+"/"+logType+".log"),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(7*24*time.Hour),
	)
	if err != nil {
		log.SetOutput(os.Stdout)
	} else {
		log.SetOutput(writer)
	}
	log.SetFormatter(formatter())
	log.SetLevel(logrus.InfoLevel)

	return log
}

func formatter() logrus.Formatter {
	return &logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return f.Function, fmt.Sprintf("%s:%d", f.File, f.Line)
		},
	}
}

// InitBiz 启动时调用，之后 Biz() 写入 ./logs/biz；未调用时输出到 stderr（测试场景）
func InitBiz() {
	bizOnce.Do(func() {
		biz = NewLogger("biz")
	})
}

// Biz 业务日志（分账、账户、打款）
func Biz() *logrus.Logger {
	return biz
}
