package status

import "testing"

func TestSessionMonitorCounters(t *testing.T) {
	m := NewSessionMonitor()

	m.IncSessions()
	m.IncSessions()
	m.DecSessions()
	if got := m.ActiveSessions(); got != 1 {
		t.Errorf("active sessions: got %d want 1", got)
	}
	if got := m.TotalSessions(); got != 2 {
		t.Errorf("total sessions: got %d want 2", got)
	}

	m.IncDialFailures()
	if got := m.DialFailures(); got != 1 {
		t.Errorf("dial failures: got %d want 1", got)
	}

	m.AddBytesIn(100)
	m.AddBytesIn(28)
	m.AddBytesOut(4)
	if got := m.BytesIn(); got != 128 {
		t.Errorf("bytes in: got %d want 128", got)
	}
	if got := m.BytesOut(); got != 4 {
		t.Errorf("bytes out: got %d want 4", got)
	}
}
