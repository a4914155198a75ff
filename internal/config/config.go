package config

import (
	"flag"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ProjectCfg struct {
	Name string `mapstructure:"name"`
}

type ServerCfg struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	TrustedProxies []string `mapstructure:"trustedProxies"`
}
type MysqlCfg struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	AutoMigrate  bool   `mapstructure:"autoMigrate"`
	LogSQL       bool   `mapstructure:"logSql"`
}
type RabbitCfg struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	VirtualHost   string `mapstructure:"virtualHost"`
	PrefetchCount int    `mapstructure:"prefetchCount"`
}
type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"poolSize"`
}
type SecurityCfg struct {
	InternalToken string   `mapstructure:"internalToken"`
	AdminToken    string   `mapstructure:"adminToken"`
	IPWhitelist   []string `mapstructure:"ipWhitelist"`
}

// FeeCfg 启动时生效的费率版本，百分比均为 0-100 的字符串，避免浮点误差
type FeeCfg struct {
	Version                 int    `mapstructure:"version"`
	AffiliateOnFinalPrice   bool   `mapstructure:"affiliateOnFinalPrice"` // 暂不支持，保持 false
	PlatformFeePercent      string `mapstructure:"platformFeePercent"`
	ReferralOverridePercent string `mapstructure:"referralOverridePercent"`
	ProcessorPercent        string `mapstructure:"processorPercent"`
	ProcessorFixedFee       int64  `mapstructure:"processorFixedFee"` // 分
	Currency                string `mapstructure:"currency"`
}

type PayoutCfg struct {
	MinimumThreshold int64  `mapstructure:"minimumThreshold"` // 分
	WindowDays       []int  `mapstructure:"windowDays"`
	Workers          int    `mapstructure:"workers"`
	TransferTimeout  int    `mapstructure:"transferTimeoutSec"`
	MaxAttempts      int    `mapstructure:"maxAttempts"`
	RateLimit        string `mapstructure:"rateLimit"` // ulule 格式，如 "5-M"
	StaleProcessing  int    `mapstructure:"staleProcessingMin"`
	// HealthThreshold 渠道成功率告警线 0-100
	HealthThreshold float64 `mapstructure:"healthThreshold"`
}

type SettlementCfg struct {
	HoldHours         int    `mapstructure:"holdHours"`
	PlatformAccountID uint64 `mapstructure:"platformAccountId"`
	TickSeconds       int    `mapstructure:"tickSeconds"`
}

type TransferCfg struct {
	Provider  string `mapstructure:"provider"`
	KeyID     string `mapstructure:"keyId"`
	KeySecret string `mapstructure:"keySecret"`
	// WebhookSecret 渠道 webhook 验签，为空时不开放 webhook 路由
	WebhookSecret string `mapstructure:"webhookSecret"`
}

type TelegramCfg struct {
	Enabled bool  `mapstructure:"enabled"`
	ChatID  int64 `mapstructure:"chatId"`
}

type Root struct {
	Project    ProjectCfg    `mapstructure:"project"`
	Server     ServerCfg     `mapstructure:"server"`
	MysqlMain  MysqlCfg      `mapstructure:"mysql_main"`
	RabbitMQ   RabbitCfg     `mapstructure:"rabbitmq"`
	Redis      RedisCfg      `mapstructure:"redis"`
	Security   SecurityCfg   `mapstructure:"security"`
	Fee        FeeCfg        `mapstructure:"fee"`
	Payout     PayoutCfg     `mapstructure:"payout"`
	Settlement SettlementCfg `mapstructure:"settlement"`
	Transfer   TransferCfg   `mapstructure:"transfer"`
	Telegram   TelegramCfg   `mapstructure:"telegram"`
}

var C Root

func Init() {
	env := flag.String("env", "dev", "config env: dev|prod")
	flag.Parse()

	// .env 只放密钥，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile("config/config." + *env + ".yaml")
	v.SetEnvPrefix("MKT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config file failed: %v", err)
	}
	if err := v.Unmarshal(&C); err != nil {
		log.Fatalf("unmarshal config failed: %v", err)
	}
	// 密钥类配置允许只通过环境变量提供
	if s := v.GetString("transfer.keySecret"); s != "" {
		C.Transfer.KeySecret = s
	}
	if s := v.GetString("transfer.webhookSecret"); s != "" {
		C.Transfer.WebhookSecret = s
	}

	ApplyDefaults(&C)
}

// ApplyDefaults sane defaults
func ApplyDefaults(c *Root) {
	if strings.TrimSpace(c.Project.Name) == "" {
		c.Project.Name = "mkt-settle"
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		c.Server.Port = "8080"
	}
	if c.MysqlMain.Charset == "" {
		c.MysqlMain.Charset = "utf8mb4"
	}
	if c.Fee.Version <= 0 {
		c.Fee.Version = 1
	}
	if c.Fee.Currency == "" {
		c.Fee.Currency = "USD"
	}
	for _, p := range []*string{&c.Fee.PlatformFeePercent, &c.Fee.ReferralOverridePercent, &c.Fee.ProcessorPercent} {
		if strings.TrimSpace(*p) == "" {
			*p = "0"
		}
	}
	if c.Payout.MinimumThreshold <= 0 {
		c.Payout.MinimumThreshold = 2500
	}
	if len(c.Payout.WindowDays) == 0 {
		c.Payout.WindowDays = []int{1, 15}
	}
	if c.Payout.Workers <= 0 {
		c.Payout.Workers = 8
	}
	if c.Payout.TransferTimeout <= 0 {
		c.Payout.TransferTimeout = 15
	}
	if c.Payout.MaxAttempts <= 0 {
		c.Payout.MaxAttempts = 3
	}
	if c.Payout.RateLimit == "" {
		c.Payout.RateLimit = "5-M"
	}
	if c.Payout.StaleProcessing <= 0 {
		c.Payout.StaleProcessing = 30
	}
	if c.Payout.HealthThreshold <= 0 {
		c.Payout.HealthThreshold = 60
	}
	if c.Settlement.PlatformAccountID == 0 {
		c.Settlement.PlatformAccountID = 1
	}
	if c.Settlement.TickSeconds <= 0 {
		c.Settlement.TickSeconds = 60
	}
	if c.Transfer.Provider == "" {
		c.Transfer.Provider = "razorpay"
	}
}
