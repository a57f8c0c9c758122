// Package monitoring holds the diagnostic logger for measurement and
// indicator failures. Status lines are not logged here; they go to the
// detector's report sink.
package monitoring

import (
	"log"
	"os"
)

// Logf writes a diagnostic line to stderr, prefixed so it can be told apart
// from status lines when both go to a terminal. Replace it with SetLogger.
var Logf func(format string, v ...interface{}) = log.New(os.Stderr, "obstacle-detector: ", log.LstdFlags).Printf

// SetLogger replaces Logf. The command passes nil unless -debug is set,
// which drops every diagnostic.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
