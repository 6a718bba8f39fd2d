package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	totalDurationMs uint64
	achExcluded     uint64
	exportFailures  uint64

	mu      sync.Mutex
	exports map[string]uint64
}

func New() *Collector {
	return &Collector{exports: make(map[string]uint64)}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	} else if status >= 400 {
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordExport counts one export attempt of the given kind. excluded is the
// number of ACH items left out of the file.
func (c *Collector) RecordExport(kind string, excluded int, err error) {
	if err != nil {
		atomic.AddUint64(&c.exportFailures, 1)
		return
	}
	if excluded > 0 {
		atomic.AddUint64(&c.achExcluded, uint64(excluded))
	}
	c.mu.Lock()
	c.exports[kind]++
	c.mu.Unlock()
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	clientErrs := atomic.LoadUint64(&c.clientErrors)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	exports := make(map[string]uint64, len(c.exports))
	for kind, n := range c.exports {
		exports[kind] = n
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":       total,
		"errorsTotal":         errs,
		"clientErrorsTotal":   clientErrs,
		"avgDurationMs":       avg,
		"totalDurationMs":     totalMs,
		"exportsTotal":        exports,
		"exportFailuresTotal": atomic.LoadUint64(&c.exportFailures),
		"achExcludedTotal":    atomic.LoadUint64(&c.achExcluded),
	}
}
