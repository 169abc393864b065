// Package logging hands out named gommon loggers that share one level and output.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/labstack/gommon/log"
)

var (
	mu      sync.Mutex
	loggers []*log.Logger
	level   = log.INFO
	output  io.Writer = os.Stderr
)

// New returns a logger with the given prefix, configured with the current level and output.
func New(prefix string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	l := log.New(prefix)
	l.SetLevel(level)
	l.SetOutput(output)
	loggers = append(loggers, l)
	return l
}

// SetLevel changes the level of every logger handed out so far and of future ones.
func SetLevel(lvl log.Lvl) {
	mu.Lock()
	defer mu.Unlock()

	level = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
}

// SetOutput redirects every logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
}
