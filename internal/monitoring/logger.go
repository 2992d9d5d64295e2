// Package monitoring carries the process-wide diagnostic logger used across
// the scan feature node. Keeping it behind an indirection lets tests capture
// or mute log output and lets operators redirect it without touching callers.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf logs only when verbose diagnostics are enabled via SetVerbose.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetVerbose routes Debugf to the main logger when on, or mutes it when off.
func SetVerbose(on bool) {
	if on {
		Debugf = func(format string, v ...interface{}) { Logf(format, v...) }
		return
	}
	Debugf = func(string, ...interface{}) {}
}
