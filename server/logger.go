package server

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 是全局可用的 SugaredLogger。
// 未初始化时为 Nop，测试里不必先调用 InitLogger。
var Log = zap.NewNop().Sugar()

// InitLogger 初始化 zap 日志
// filePath: 滚动日志文件，如 "logs/astroarena.log"；为空时只写 stderr
// level: debug | info | warn | error
// stdout: 同时以控制台格式输出到 stderr
func InitLogger(filePath, level string, stdout bool) error {
	lvl := zapcore.DebugLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		lvl = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.StacktraceKey = "stack"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var cores []zapcore.Core
	if filePath != "" {
		// 单文件 10MB，保留 3 个备份共 7 天
		rot := &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rot), lvl))
	}
	if stdout || filePath == "" {
		conCfg := encCfg
		conCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(conCfg), zapcore.Lock(os.Stderr), lvl))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	return nil
}

// L 结构化 logger，交给 session/store/mirror 等库包使用
func L() *zap.Logger {
	return Log.Desugar()
}

// SyncLogger 刷新缓冲；退出前调用
func SyncLogger() {
	_ = Log.Sync()
}
