// Package logrus adapts a logrus entry to layercache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/layercache"
)

var _ layercache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every record with component=layercache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "layercache")}
}

func (l Logger) with(f layercache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}

func (l Logger) Debug(msg string, f layercache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f layercache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f layercache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f layercache.Fields) { l.with(f).Error(msg) }
