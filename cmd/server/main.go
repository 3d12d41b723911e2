package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/seatrade/rag-backend/app/bootstrap"
	"github.com/seatrade/rag-backend/app/router"
	"github.com/seatrade/rag-backend/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "Shipping RAG Service"
	web.BConfig.CopyRequestBody = true
	if p, err := strconv.Atoi(app.Config.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = p
	}

	logger.Info("🚀 Starting Shipping RAG Service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
