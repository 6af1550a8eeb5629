// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kisusu115/library-bookworm/internal/aladin"
	"github.com/kisusu115/library-bookworm/internal/config"
	"github.com/kisusu115/library-bookworm/internal/excel"
	"github.com/kisusu115/library-bookworm/internal/jobs"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	excelService := excel.NewService(cfg.MaxFileSize)
	manager, registry, err := setupJobs(cfg, excelService)
	if err != nil {
		log.Fatalf("Failed to set up jobs: %v", err)
	}

	// 未回収ジョブのTTL掃除
	registry.StartSweeper(context.Background(), time.Minute)

	// ルーティングの設定
	setupRoutes(router, cfg, manager, excelService)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupJobs はレジストリ・ランナー・マネージャーを組み立てます。
func setupJobs(cfg *config.Config, builder *excel.Service) (*jobs.Manager, *jobs.Registry, error) {
	client := aladin.New(cfg.AladinBaseURL, time.Duration(cfg.AladinTimeoutSeconds)*time.Second)

	registry := jobs.NewRegistry(time.Duration(cfg.JobExpireMinutes)*time.Minute, log.Default())
	runner := jobs.NewRunner(client, builder, time.Duration(cfg.LookupIntervalMillis)*time.Millisecond, log.Default())

	manager, err := jobs.NewManager(registry, runner, log.Default())
	if err != nil {
		return nil, nil, err
	}
	return manager, registry, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "library-bookworm-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, manager *jobs.Manager, excelService *excel.Service) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	streamTimeout := time.Duration(cfg.StreamTimeoutMinutes) * time.Minute

	api := router.Group("/api")
	{
		api.POST("/process/text", jobs.ProcessTextHandler(manager, excelService))
		api.POST("/process/excel", jobs.ProcessExcelHandler(manager, excelService))
		api.GET("/status/:id", jobs.StatusHandler(manager, streamTimeout))
		api.GET("/download/:id", jobs.DownloadHandler(manager))
	}
}
