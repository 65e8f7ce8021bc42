// Package log provides the structured, per-module loggers used throughout
// the node. Every component asks for its own named logger so that log lines
// can be filtered by subsystem without touching call sites.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseOnce sync.Once
	base     *zap.Logger
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Module names, grouped here so every component refers to the same string.
const (
	Codec       = "codec"
	Store       = "store"
	Chain       = "chain"
	TxPool      = "txpool"
	Executor    = "executor"
	Committee   = "committee"
	Gossip      = "gossip"
	Consensus   = "consensus"
	Validator   = "validator"
	Sync        = "sync"
	Config      = "config"
	Metrics     = "metrics"
	API         = "api"
	Console     = "console"
	WalletSig   = "walletsig"
	Main        = "main"
)

func root() *zap.Logger {
	baseOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		l, err := cfg.Build()
		if err != nil {
			// Fall back to a bare logger rather than crash the process over
			// a logging misconfiguration.
			l = zap.NewNop()
			os.Stderr.WriteString("log: falling back to no-op logger: " + err.Error() + "\n")
		}
		base = l
	})
	return base
}

// NewModuleLogger returns a sugared logger tagged with the given module
// name.
func NewModuleLogger(module string) *zap.SugaredLogger {
	return root().Sugar().With("module", module)
}

// SetLevel adjusts the global minimum log level. Accepted values: debug,
// info, warn, error.
func SetLevel(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}
