package db

import (
	"context"
	"fmt"
	"time"

	"promptbot/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options 控制连接重试和连接池大小，零值使用默认值。
type Options struct {
	Attempts int
	MaxOpen  int
	MaxIdle  int
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 10
	}
	if o.MaxOpen <= 0 {
		o.MaxOpen = 20
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = 5
	}
	return o
}

// Connect 打开 Postgres 连接并 ping，失败时线性退避重试，直到次数用尽或 ctx 结束。
func Connect(ctx context.Context, dsn string, opts Options) (*gorm.DB, error) {
	opts = opts.withDefaults()
	var lastErr error
	for i := 0; i < opts.Attempts; i++ {
		gdb, err := open(ctx, dsn, opts)
		if err == nil {
			return gdb, nil
		}
		lastErr = err
		if i == opts.Attempts-1 {
			break
		}
		wait := time.Duration(500+i*200) * time.Millisecond
		log.Warn().Err(err).Int("attempt", i+1).Dur("retry_in", wait).Msg("db not ready")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", opts.Attempts, lastErr)
}

func open(ctx context.Context, dsn string, opts Options) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpen)
	sqlDB.SetMaxIdleConns(opts.MaxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

// Migrate 建表：tokens(user_id、token 唯一) 与 prompts。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.Token{}, &models.Prompt{})
}
