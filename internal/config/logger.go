package config

import (
	"fmt"
	"io"
	stdslog "log/slog"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/layercache"
	lrlog "github.com/unkn0wn-root/layercache/log/logrus"
	slogadapter "github.com/unkn0wn-root/layercache/log/slog"
	zaplog "github.com/unkn0wn-root/layercache/log/zap"
)

// NewLogger builds the configured logging backend writing to w.
// The returned func flushes buffered output.
func NewLogger(c Log, w io.Writer) (layercache.Logger, func(), error) {
	level := strings.ToLower(c.Level)
	json := strings.EqualFold(c.Format, "json")

	switch strings.ToLower(c.Backend) {
	case "", "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(coalesceStr(level, "info"))); err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		hopts := &stdslog.HandlerOptions{Level: lvl}
		var h stdslog.Handler = stdslog.NewTextHandler(w, hopts)
		if json {
			h = stdslog.NewJSONHandler(w, hopts)
		}
		return slogadapter.New(stdslog.New(h)), func() {}, nil

	case "logrus":
		lvl, err := logrus.ParseLevel(coalesceStr(level, "info"))
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(lvl)
		if json {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return lrlog.New(l), func() {}, nil

	case "zap":
		lvl, err := zapcore.ParseLevel(coalesceStr(level, "info"))
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder = zapcore.NewConsoleEncoder(encCfg)
		if json {
			enc = zapcore.NewJSONEncoder(encCfg)
		}
		zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
		return zaplog.New(zl), func() { _ = zl.Sync() }, nil
	}
	return nil, nil, fmt.Errorf("log backend: unknown %q", c.Backend)
}

func coalesceStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
