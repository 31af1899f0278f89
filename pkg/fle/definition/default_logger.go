// Package definition holds the default, swappable implementations of
// the small interfaces the election package consumes, today just
// the Logger. Kept separate from pkg/fle/types, which only holds the
// interfaces and wire-level data.
package definition

import (
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLogger is the Logger implementation used when the caller
// doesn't supply its own, wrapping a dedicated *logrus.Logger.
type DefaultLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds a DefaultLogger writing to stderr with
// logrus's text formatter, debug level disabled.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: l}
}

func (l *DefaultLogger) Info(v ...interface{}) { l.entry.Info(v...) }

func (l *DefaultLogger) Infof(format string, v ...interface{}) { l.entry.Infof(format, v...) }

func (l *DefaultLogger) Warn(v ...interface{}) { l.entry.Warn(v...) }

func (l *DefaultLogger) Warnf(format string, v ...interface{}) { l.entry.Warnf(format, v...) }

func (l *DefaultLogger) Error(v ...interface{}) { l.entry.Error(v...) }

func (l *DefaultLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }

func (l *DefaultLogger) Debug(v ...interface{}) { l.entry.Debug(v...) }

func (l *DefaultLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }

func (l *DefaultLogger) Fatal(v ...interface{}) { l.entry.Fatal(v...) }

func (l *DefaultLogger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }

// ToggleDebug sets the logger to Debug level when value is true and to
// Info level otherwise, returning whether debug logging was enabled
// beforehand.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	was := l.entry.GetLevel() == logrus.DebugLevel
	if value {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return was
}
