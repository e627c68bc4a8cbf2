// Package metrics defines the minimal backend interface the rest of the code
// records against, plus a process-level default backend.
//
// Core packages never import a vendor SDK; they call the helpers here, and
// commands decide at startup whether a real backend (see metrics/datadog) or
// the no-op default is installed.
package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Labels tag a metric sample.
type Labels map[string]string

// Backend receives metric samples.
//
// Implementations must be safe for concurrent use; helpers in this package
// may be called from multiple goroutines.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// nopBackend drops everything; it is the default until SetBackend is called.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process backend. Passing nil restores the
// no-op default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush forwards to the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordHTTP records one HTTP exchange: a request counter labeled by status,
// an error counter when err is non-nil, and the request duration.
func RecordHTTP(job string, status int, err error, dur time.Duration) {
	b := current()
	labels := Labels{"job": job, "status": fmt.Sprintf("%d", status)}

	b.IncCounter("aim.http.requests", 1, labels)
	if err != nil {
		b.IncCounter("aim.http.errors", 1, labels)
	}
	b.ObserveHistogram("aim.http.duration_ms", float64(dur.Milliseconds()), labels)
}

// RecordRun records one end-to-end model run. outcome is one of
// "structured", "raw" or "error".
func RecordRun(job, outcome string, dur time.Duration) {
	b := current()
	labels := Labels{"job": job, "outcome": outcome}

	b.IncCounter("aim.runs", 1, labels)
	b.ObserveHistogram("aim.run.duration_ms", float64(dur.Milliseconds()), labels)
}
