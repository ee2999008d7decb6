// Package logging is the small logger surface shared by the SDK packages.
// The default writes through glog so command-line programs pick up the usual
// -v / -logtostderr flags.
package logging

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// Logger receives SDK diagnostics. Implementations must be safe for
// concurrent use.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type glogLogger struct {
	prefix string
}

// Default returns a Logger backed by glog.
func Default() Logger {
	return &glogLogger{prefix: "[gophnote]"}
}

// Named returns a glog-backed Logger whose lines start with [name].
func Named(name string) Logger {
	return &glogLogger{prefix: fmt.Sprintf("[%s]", name)}
}

func (l *glogLogger) Infof(format string, args ...any) {
	glog.InfoDepth(1, l.prefix+" "+fmt.Sprintf(format, args...))
}

func (l *glogLogger) Errorf(format string, args ...any) {
	glog.ErrorDepth(1, l.prefix+" "+fmt.Sprintf(format, args...))
}

type nopLogger struct{}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Recorder keeps formatted lines in memory. Tests use it to assert that a
// failure was logged.
type Recorder struct {
	mu    sync.Mutex
	Infos []string
	Errs  []string
}

func (r *Recorder) Infof(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Infos = append(r.Infos, fmt.Sprintf(format, args...))
}

func (r *Recorder) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errs = append(r.Errs, fmt.Sprintf(format, args...))
}

// Errors returns a copy of the recorded error lines.
func (r *Recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Errs...)
}

// OrDefault returns l, or Default() when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
