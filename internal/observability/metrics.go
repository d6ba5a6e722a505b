package observability

import (
	"strconv"
	"sync"
	"time"
)

// RollbackOutcome labels how a rollback call ended.
type RollbackOutcome string

const (
	OutcomeOK           RollbackOutcome = "ok"
	OutcomeInconsistent RollbackOutcome = "inconsistent"
	OutcomeFailed       RollbackOutcome = "failed"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	rollbackCount map[RollbackOutcome]int64
	cacheHits     int64
	cacheMisses   int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		rollbackCount: make(map[RollbackOutcome]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordRollback counts a rollback call by outcome.
func (m *Metrics) RecordRollback(outcome RollbackOutcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbackCount[outcome]++
}

// RecordCache counts a snapshot cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

// Snapshot returns a copy of the counters for diagnostics endpoints.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.requestCount)+len(m.errorCount)+len(m.rollbackCount)+2)
	for key, count := range m.requestCount {
		out["request|"+key] = count
	}
	for key, count := range m.errorCount {
		out["error|"+key] = count
	}
	for outcome, count := range m.rollbackCount {
		out["rollback|"+string(outcome)] = count
	}
	out["cache|hit"] = m.cacheHits
	out["cache|miss"] = m.cacheMisses
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
