package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/handler"
	"mkt-settle-api/internal/idgen"
	"mkt-settle-api/internal/logger"
	"mkt-settle-api/internal/middleware"
	"mkt-settle-api/internal/mq"
	"mkt-settle-api/internal/notify"
	"mkt-settle-api/internal/scheduler"
	"mkt-settle-api/internal/service"
	"mkt-settle-api/internal/settlement"
	"mkt-settle-api/internal/transfer"
	"mkt-settle-api/internal/transfer/health"
)

func main() {
	// load config env
	config.Init()
	logger.InitBiz()

	idgen.InitFromEnv(1)

	// init infra
	dal.InitMainDB()
	dal.InitRedis()
	if err := dal.InitRabbitMQ(); err != nil {
		log.Fatalf("rabbitmq init failed: %v", err)
	}

	// 费率配置非法时拒绝启动
	fee, err := settlement.FeeFromConfig(config.C.Fee)
	if err != nil {
		log.Fatalf("fee config invalid: %v", err)
	}
	fees := service.NewFeeService(dal.MainDB, dal.RedisClient, fee)
	if err := fees.Register(context.Background()); err != nil {
		log.Fatalf("register fee config failed: %v", err)
	}
	tr, err := transfer.New(config.C.Transfer)
	if err != nil {
		log.Fatalf("transfer provider: %v", err)
	}

	ledger := service.NewLedgerService(dal.MainDB)
	settle := service.NewSettlementService(dal.MainDB, ledger, fees,
		config.C.Settlement.HoldHours, config.C.Settlement.PlatformAccountID)
	payouts := service.NewPayoutService(dal.MainDB, ledger, tr,
		service.PayoutOptionsFromConfig(config.C.Payout), fee.Currency).
		WithRedis(dal.RedisClient).
		WithNotifier(notify.New(config.C.Telegram)).
		WithEvents(mq.NewPublisher()).
		WithHealth(health.NewTracker(dal.RedisClient, health.EWMAStrategy{Alpha: 0.1}, config.C.Payout.HealthThreshold, 24*time.Hour),
			config.C.Transfer.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go idgen.WatchClock(ctx)

	// start consumers & scheduler
	go mq.StartSaleConsumer(ctx, settle)
	go mq.StartTransferCallbackConsumer(ctx, payouts)
	go scheduler.New(settle, payouts, time.Duration(config.C.Settlement.TickSeconds)*time.Second).Run(ctx)

	// http server
	if config.C.Server.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if len(config.C.Server.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(config.C.Server.TrustedProxies); err != nil {
			log.Fatalf("trusted proxies: %v", err)
		}
	}
	r.Use(middleware.RequestLogger(logger.NewLogger("access")), middleware.Recover())

	payoutLimit, err := middleware.RateLimit("payout", config.C.Payout.RateLimit)
	if err != nil {
		log.Fatalf("payout rate limit: %v", err)
	}
	handler.Register(r, handler.Deps{
		Settlement:      settle,
		Ledger:          ledger,
		Payout:          payouts,
		WebhookSecret:   config.C.Transfer.WebhookSecret,
		InternalAuth:    middleware.InternalAuth(),
		AdminAuth:       middleware.AdminAuth(),
		PayoutRateLimit: payoutLimit,
	})

	srv := &http.Server{Addr: ":" + config.C.Server.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("listening %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	dal.Close()
}
