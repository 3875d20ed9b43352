package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hyp3rd/otelsynth/pkg/config"
)

// FromConfig builds the configured adapter writing to stderr.
func FromConfig(cfg config.LoggingConfig) Adapter {
	return New(os.Stderr, cfg)
}

// New builds the configured adapter writing to w. Backends are opened at
// debug; the adapter applies the configured level and sample ratio.
func New(w io.Writer, cfg config.LoggingConfig) Adapter {
	text := strings.EqualFold(cfg.Format, "text")

	var s sink

	switch strings.ToLower(cfg.Adapter) {
	case "zap":
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		encoder := zapcore.NewJSONEncoder(encoderCfg)
		if text {
			encoder = zapcore.NewConsoleEncoder(encoderCfg)
		}

		s = zapSink{logger: zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), zapcore.DebugLevel))}
	case "zerolog":
		out := w
		if text {
			out = zerolog.ConsoleWriter{Out: w, NoColor: true}
		}

		s = zerologSink{logger: zerolog.New(out).With().Timestamp().Logger()}
	default:
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}

		var handler slog.Handler = slog.NewJSONHandler(w, opts)
		if text {
			handler = slog.NewTextHandler(w, opts)
		}

		s = slogSink{logger: slog.New(handler)}
	}

	return newAdapter(s, ParseLevel(cfg.Level), cfg.SampleRatio)
}
