package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the drive and sweep
// loops to narrate progress. It defaults to log.Printf; replace it with
// SetLogger to redirect or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
