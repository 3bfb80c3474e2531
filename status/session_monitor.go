package status

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"
)

// SessionMonitor tracks relay sessions for debugging
type SessionMonitor struct {
	activeSessions atomic.Int64
	totalSessions  atomic.Int64
	dialFailures   atomic.Int64
	bytesIn        atomic.Int64 // client -> upstream
	bytesOut       atomic.Int64 // upstream -> client
}

func NewSessionMonitor() *SessionMonitor {
	return &SessionMonitor{}
}

func (m *SessionMonitor) IncSessions() {
	m.activeSessions.Add(1)
	m.totalSessions.Add(1)
}

func (m *SessionMonitor) DecSessions() {
	m.activeSessions.Add(-1)
}

func (m *SessionMonitor) IncDialFailures() {
	m.dialFailures.Add(1)
}

func (m *SessionMonitor) AddBytesIn(n int64) {
	m.bytesIn.Add(n)
}

func (m *SessionMonitor) AddBytesOut(n int64) {
	m.bytesOut.Add(n)
}

func (m *SessionMonitor) ActiveSessions() int64 { return m.activeSessions.Load() }
func (m *SessionMonitor) TotalSessions() int64  { return m.totalSessions.Load() }
func (m *SessionMonitor) DialFailures() int64   { return m.dialFailures.Load() }
func (m *SessionMonitor) BytesIn() int64        { return m.bytesIn.Load() }
func (m *SessionMonitor) BytesOut() int64       { return m.bytesOut.Load() }

// StartPeriodicLogging emits a MONITOR line every 15 seconds with the
// session counters and runtime stats.
func (m *SessionMonitor) StartPeriodicLogging() {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)

			log.Printf("MONITOR: Sessions - active: %d, total: %d, dial failures: %d | Bytes - in: %d, out: %d | Goroutines: %d | HeapAlloc: %d MB",
				m.activeSessions.Load(),
				m.totalSessions.Load(),
				m.dialFailures.Load(),
				m.bytesIn.Load(),
				m.bytesOut.Load(),
				runtime.NumGoroutine(),
				ms.HeapAlloc/1024/1024,
			)
		}
	}()
}
