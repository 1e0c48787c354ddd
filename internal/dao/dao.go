package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/config"
	"github.com/ayxworxfr/go_backoffice/internal/domain/models"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"xorm.io/xorm"
	"xorm.io/xorm/log"
)

// Models sql 会话驱动需要的表
func Models() []any {
	return []any{
		new(models.SessionValue),
	}
}

// InitDB 使用配置初始化 XORM 引擎，并同步会话表结构
func InitDB(ctx context.Context, dbConfig config.DatabaseConfig, logLevel string) (*xorm.Engine, error) {
	engine, err := xorm.NewEngine("mysql", dbConfig.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "create xorm engine")
	}

	// 设置数据库连接池
	engine.SetMaxIdleConns(dbConfig.MaxIdleConns)
	engine.SetMaxOpenConns(dbConfig.MaxOpenConns)
	engine.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)

	engine.AddHook(NewXormLogger(dbConfig.ShowSQL))
	engine.Logger().SetLevel(parseLogLevel(logLevel))

	if err := engine.PingContext(ctx); err != nil {
		engine.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if err := SyncDB(ctx, engine, Models()...); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

func parseLogLevel(level string) log.LogLevel {
	switch level {
	case "debug":
		return log.LOG_DEBUG
	case "warn":
		return log.LOG_WARNING
	case "error":
		return log.LOG_ERR
	default:
		return log.LOG_INFO
	}
}

// SyncDB 同步表结构，逐表收集错误
func SyncDB(ctx context.Context, engine *xorm.Engine, modelList ...any) error {
	var result *multierror.Error
	for _, model := range modelList {
		tableName := engine.TableName(model)
		logger.Info(ctx, "Sync table", zap.String("table", tableName))

		if err := engine.Sync2(model); err != nil {
			result = multierror.Append(result, fmt.Errorf("sync table %s: %w", tableName, err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		logger.Error(ctx, "Database sync finished with errors", zap.Error(err))
		return err
	}
	logger.Info(ctx, "Database sync finished", zap.Int("tables", len(modelList)))
	return nil
}
