package types

// Logger is the logging contract used across the election package.
// A default, logrus-backed implementation is provided by
// pkg/fle/definition, but callers may plug in their own.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warn(v ...interface{})
	Warnf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})

	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// ToggleDebug turns debug-level logging on or off, returning the
	// previous value.
	ToggleDebug(value bool) bool
}
