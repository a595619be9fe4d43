package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lbserver/models"
)

// LoadConfig は設定ファイルからDB接続情報を読み込む。
// パスワード等の機微情報は環境変数が優先される。
func LoadConfig(filename string) (*models.Config, error) {
	var config models.Config
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bytes, &config); err != nil {
		return nil, err
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		config.DBPassword = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		config.DBHost = v
	}
	if v := os.Getenv("DB_BACKEND"); v != "" {
		config.DBBackend = v
	}
	return &config, nil
}

// InitDB は設定のbackendに応じてPostgreSQLまたはSQLiteへ接続する。
func InitDB(config *models.Config, logger *zap.Logger) (*gorm.DB, error) {
	if config.DBBackend == "sqlite" {
		return InitSQLite(config.DBPath, logger)
	}
	return InitPostgreSQL(config, logger)
}

// InitPostgreSQL はPostgreSQLへの接続を試みる。
// コンテナ起動直後はDBが未準備のことがあるためリトライする。
func InitPostgreSQL(config *models.Config, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=%s",
		config.DBHost, config.DBUser, config.DBPassword, config.DBName, config.DBSSLMode)

	var db *gorm.DB
	var err error
	for attempts := 0; attempts < 10; attempts++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL")
			return db, nil
		}
		logger.Warn("Failed to connect to PostgreSQL, retrying",
			zap.Int("attempt", attempts+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("could not connect to PostgreSQL: %w", err)
}

// InitSQLite はファイルまたはインメモリのSQLiteを開く。
// 開発環境とテストで使用する。
func InitSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open SQLite database: %w", err)
	}
	// SQLiteは並行書き込みに弱いため接続を1本に絞る
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	logger.Info("Successfully opened SQLite database", zap.String("path", path))
	return db, nil
}

// AutoMigrate は全モデルのスキーマを適用する。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Competition{},
		&models.Team{},
		&models.Completion{},
	)
}

// InitRedis はセッション保存用のRedisクライアントを初期化する。
func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}
	logger.Info("Successfully connected to Redis", zap.String("addr", addr))
	return rdb, nil
}
