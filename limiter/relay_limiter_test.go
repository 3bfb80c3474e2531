package limiter

import (
	"bytes"
	"net"
	"testing"
)

func TestWrapConnPassesBytesThrough(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sl := NewSharedLimiter(0) // unlimited
	wrapped := sl.WrapConn(a)

	payload := []byte("ICY 200 OK\r\n\r\nTest")
	go func() {
		wrapped.Write(payload)
	}()

	buf := make([]byte, len(payload))
	n, err := b.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Fatalf("payload altered: got %q want %q", buf[:n], payload)
	}
}

func TestLimiterRecordsBytes(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sl := NewSharedLimiter(1 << 20)
	wrapped := sl.WrapConn(a)

	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := b.Read(buf); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		if _, err := wrapped.Write(make([]byte, 100)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	if got := sl.GetActiveRate(); got < 0 {
		t.Fatalf("active rate should never be negative, got %d", got)
	}
	if got := sl.GetMaxRate(); got != 1<<20 {
		t.Fatalf("max rate: got %d want %d", got, 1<<20)
	}
}

func TestUnlimitedDefault(t *testing.T) {
	sl := NewSharedLimiter(-1)
	if sl.GetMaxRate() != theoreticalMaxBandwidth {
		t.Fatalf("non-positive limit should fall back to the theoretical max, got %d", sl.GetMaxRate())
	}
}
