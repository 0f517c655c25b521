package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/labomba/deposit-settlement/internal/types/environments"
)

func configFor(env environments.Environment) zap.Config {
	switch env {
	case environments.Development:
		return newDevelopmentLoggerConfig()
	case environments.Test:
		return newTestLoggerConfig()
	case environments.Staging:
		return newStagingLoggerConfig()
	default:
		return newProductionLoggerConfig()
	}
}

// Production entries are JSON with ISO8601 timestamps; repeated messages are
// sampled so an RPC outage cannot flood the log pipeline.
func newProductionLoggerConfig() zap.Config {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		Sampling:         &zap.SamplingConfig{Initial: 100, Thereafter: 100},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

func newStagingLoggerConfig() zap.Config {
	cfg := newProductionLoggerConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	return cfg
}

func newDevelopmentLoggerConfig() zap.Config {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zap.Config{
		Level:             zap.NewAtomicLevelAt(zap.DebugLevel),
		Development:       true,
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          "console",
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// test logs are discarded
func newTestLoggerConfig() zap.Config {
	cfg := newProductionLoggerConfig()
	cfg.Sampling = nil
	cfg.OutputPaths = []string{}
	cfg.ErrorOutputPaths = []string{}
	return cfg
}
