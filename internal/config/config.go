// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ファイル制限
	MaxFileSize int64 // アップロードExcelファイルの最大サイズ（バイト）

	// アラジンAPI設定
	AladinBaseURL        string // アラジン商品照会API（ItemLookUp）のベースURL
	AladinTimeoutSeconds int    // API呼び出しのタイムアウト（秒）
	LookupIntervalMillis int    // ISBN照会のディスパッチ間隔（ミリ秒）

	// ジョブ設定
	StreamTimeoutMinutes int // SSEストリームの最大接続時間（分）
	JobExpireMinutes     int // 未回収ジョブの有効期限（分）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ファイル制限
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760), // 10MB

		// アラジンAPI設定
		AladinBaseURL:        getEnv("ALADIN_BASE_URL", "https://www.aladin.co.kr/ttb/api/ItemLookUp.aspx"),
		AladinTimeoutSeconds: getEnvAsInt("ALADIN_TIMEOUT_SECONDS", 10),
		LookupIntervalMillis: getEnvAsInt("LOOKUP_INTERVAL_MILLIS", 100),

		// ジョブ設定
		StreamTimeoutMinutes: getEnvAsInt("STREAM_TIMEOUT_MINUTES", 60),
		JobExpireMinutes:     getEnvAsInt("JOB_EXPIRE_MINUTES", 60),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.AladinBaseURL == "" {
		return fmt.Errorf("ALADIN_BASE_URL is required")
	}
	if c.LookupIntervalMillis < 0 {
		return fmt.Errorf("LOOKUP_INTERVAL_MILLIS must not be negative")
	}
	if c.GinMode == "release" {
		if c.CORSAllowedOrigins == "" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
