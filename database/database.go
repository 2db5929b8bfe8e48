package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"partyserver/models"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// LoadConfig は config.json を読み込み、PARTY_* 環境変数で上書きします。
// ファイルが無い場合は環境変数とデフォルト値だけで動きます。
func LoadConfig(filename string) (models.Config, error) {
	var config models.Config

	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("json")
	v.SetEnvPrefix("PARTY")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	if err := v.Unmarshal(&config); err != nil {
		return config, err
	}
	return config, validateConfig(config)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "partygame")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("super_admin_username", "admin")
	v.SetDefault("super_admin_password", "")
	v.SetDefault("allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("addr", ":8080")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_region", "auto")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("cdn_base_url", "")
}

func validateConfig(c models.Config) error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret must be set (env: PARTY_JWT_SECRET)")
	}
	if c.S3Bucket != "" && (c.S3AccessKey == "" || c.S3SecretKey == "") {
		return errors.New("s3_access_key and s3_secret_key are required when s3_bucket is set")
	}
	return nil
}

func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s",
		config.DBHost, config.DBPort, config.DBUser, config.DBName, config.DBPassword, config.DBSSLMode)

	const maxRetries = 3
	const retryInterval = 5 * time.Second
	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		time.Sleep(retryInterval)
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

func InitRedis(config models.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// Redisへの接続テスト
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
	return rdb, nil
}
