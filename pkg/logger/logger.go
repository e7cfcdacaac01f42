package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options 日志配置
type Options struct {
	Dir     string // 日志目录，为空时只输出到控制台
	Level   string // debug/info/warn/error
	Console bool   // 是否同时输出到控制台
}

var (
	mu      sync.RWMutex
	base    = newLogger(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}, zerolog.InfoLevel)
	logFile *os.File
)

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 1).
		Logger()
}

// SetupLogger 初始化日志配置，默认写入 logs 目录
func SetupLogger() error {
	return SetupLoggerWithOptions(Options{Dir: "logs", Level: "info", Console: true})
}

// SetupLoggerWithOptions 按配置初始化日志：控制台 + 按日期命名的日志文件
func SetupLoggerWithOptions(opts Options) error {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if opts.Console || opts.Dir == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}

	var file *os.File
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}

		// 生成当前日期的日志文件名
		name := filepath.Join(opts.Dir, fmt.Sprintf("%s.log", time.Now().Format("2006-01-02")))
		file, err = os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		writers = append(writers, file)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	base = newLogger(zerolog.MultiLevelWriter(writers...), level)
	return nil
}

// SetOutput 替换日志输出（测试使用）
func SetOutput(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.DebugLevel
	}

	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w, lvl)
}

// Close 关闭日志文件
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

// Debug 记录调试级别的日志
func Debug(format string, v ...interface{}) {
	current().Debug().Msgf(format, v...)
}

// Info 记录信息级别的日志
func Info(format string, v ...interface{}) {
	current().Info().Msgf(format, v...)
}

// Warning 记录警告级别的日志
func Warning(format string, v ...interface{}) {
	current().Warn().Msgf(format, v...)
}

// Error 记录错误级别的日志
func Error(format string, v ...interface{}) {
	current().Error().Msgf(format, v...)
}

// Writer 返回一个以信息级别写日志的 io.Writer，供 gin / 标准库日志复用
func Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		current().Info().Msg(strings.TrimRight(string(p), "\n"))
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
