package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"mkt-settle-api/internal/config"
	"mkt-settle-api/internal/dal"
	"mkt-settle-api/internal/logger"
	"mkt-settle-api/internal/service"
)

// 离线对账：回放全部流水与物化余额比对，有差异时退出码 1
// go run ./cmd/reconcile -env prod
func main() {
	config.Init()
	logger.InitBiz()
	dal.InitMainDB()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := service.NewLedgerService(dal.MainDB).Reconcile(ctx)
	if err != nil {
		log.Fatalf("reconcile failed: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if len(report.Mismatches) > 0 {
		log.Printf("reconcile: %d of %d ledgers mismatched", len(report.Mismatches), report.Checked)
		os.Exit(1)
	}
}
