package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/layercache"
)

func TestForwardsLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("populated", layercache.Fields{"layer": "memory", "count": 2})
	l.Warn("fault", layercache.Fields{"err": errors.New("down")})

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("got %d entries, want 2", len(all))
	}
	if all[0].LoggerName != "layercache" {
		t.Fatalf("logger name=%q", all[0].LoggerName)
	}
	ctx := all[0].ContextMap()
	if ctx["layer"] != "memory" || ctx["count"] != int64(2) {
		t.Fatalf("fields=%v", ctx)
	}
	if all[0].Context[0].Key != "count" {
		t.Fatalf("fields not sorted: first=%q", all[0].Context[0].Key)
	}
	if all[1].Level != zapcore.WarnLevel || all[1].ContextMap()["err"] != "down" {
		t.Fatalf("warn entry=%+v", all[1])
	}
}
