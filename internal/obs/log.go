// Package obs provides the process-wide structured logger.
//
// Every component gets its own component-scoped logger via New, mirroring
// the teacher's one log line per lifecycle event habit (session open/close,
// arena created, match emitted) but in structured form instead of
// log.Printf strings.
package obs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	base zerolog.Logger
)

func defaultLogger() zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

// Init configures the process-wide base logger. Safe to call once at
// startup; subsequent calls are no-ops so tests and the real entry point
// can both call it without coordination.
func Init(w io.Writer, debug bool) {
	once.Do(func() {
		if w == nil {
			base = defaultLogger()
			return
		}
		level := zerolog.InfoLevel
		if debug {
			level = zerolog.DebugLevel
		}
		base = zerolog.New(w).Level(level).With().Timestamp().Logger()
	})
}

// New returns a logger scoped to component, e.g. "tick", "session", "dispatch".
// Falls back to a default stderr logger if Init was never called, so
// package-level loggers created before main() runs still work.
func New(component string) zerolog.Logger {
	once.Do(func() {
		base = defaultLogger()
	})
	return base.With().Str("component", component).Logger()
}
