// Package dflog provides the leveled, structured logger used by every
// long-lived component in this module. There is no package-level
// singleton: components take a Logger at construction time.
package dflog

// Logger is the leveled logging interface injected into components.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})

	// With returns a child logger that prefixes every message with the
	// given key/value pairs.
	With(keysAndValues ...interface{}) Logger

	// Sync flushes any buffered log entries.
	Sync() error
}
