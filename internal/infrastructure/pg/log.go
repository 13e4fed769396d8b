package pg

import (
	"forexsync/internal/infrastructure/logx"

	"go.uber.org/zap"
)

func sqlLog(repo, op, stmt string, fields ...zap.Field) *zap.Logger {
	return logx.L().With(append([]zap.Field{
		zap.String("repo", repo),
		zap.String("operation", op),
		zap.String("sql", stmt),
	}, fields...)...)
}
