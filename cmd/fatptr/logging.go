package main

import (
	"os"

	"github.com/funvibe/fatptr/internal/cache"
	"github.com/funvibe/fatptr/internal/codegen"
	"github.com/funvibe/fatptr/internal/descriptor"
	"github.com/funvibe/fatptr/pkg/fatptr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// setupLogging installs a console logger on every package that logs.
func setupLogging(verbose bool) {
	l := newLogger(os.Stderr, verbose, colorEnabled(os.Stderr, os.Getenv))
	descriptor.SetLogger(l)
	codegen.SetLogger(l)
	cache.SetLogger(l)
	fatptr.SetLogger(l)
}

func newLogger(w zapcore.WriteSyncer, verbose, color bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(w), level)
	return zap.New(core)
}

// colorEnabled reports whether log output to f should be coloured:
// NO_COLOR unset, f is a terminal, and TERM is not "dumb".
func colorEnabled(f *os.File, getenv func(string) string) bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false
	}
	return getenv("TERM") != "dumb"
}
