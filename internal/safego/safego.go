// Package safego launches background goroutines that survive panics.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine labelled name. A panic inside fn is recovered
// and logged with its stack so one failing job cycle cannot take down the
// server or silently stop the job.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine",
					"goroutine", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
