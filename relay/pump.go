package relay

import (
	"errors"
	"io"
	"log"
	"net"
)

// pump copies bytes from src to dst through a fixed-size buffer until
// source EOF, an I/O error, or teardown of the owning session. Each
// chunk read is written out completely before the next read; the relay
// never retries a failed connection because it has no notion of
// request boundaries to replay from.
//
// On exit the session is torn down so the peer pump unblocks right
// away instead of waiting for its own EOF.
func (s *session) pump(dst, src net.Conn, record func(int64)) {
	defer s.teardown()

	buf := make([]byte, s.bufferSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				logPumpError("write", src, dst, werr)
				return
			}
			record(int64(n))
		}
		if rerr != nil {
			if rerr != io.EOF {
				logPumpError("read", src, dst, rerr)
			}
			return
		}
	}
}

func logPumpError(op string, src, dst net.Conn, err error) {
	// Closed-connection errors are the normal teardown path, any pump
	// ending closes both sockets under the other pump.
	if errors.Is(err, net.ErrClosed) {
		return
	}
	log.Printf("RELAY: %s error piping %s -> %s: %v",
		op, src.RemoteAddr(), dst.RemoteAddr(), err)
}
