/*
Package wire implements the frame transport for the NUL-delimited line
protocol both sub-protocols speak.

This file defines the Transport struct, which owns one TCP connection,
serializes outgoing writes, and buffers the incoming byte stream until
complete records are available. Reconnection is owner-supplied because it
requires re-authentication and a protocol-specific re-handshake; the
transport only detects the need and blocks until the owner has the new
connection live.
*/
package wire

import (
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"chatango/internal/pkg/errs"
	"chatango/internal/pkg/logx"
)

// readChunkSize is the per-read buffer size for the socket.
const readChunkSize = 8192

// emptyReadThreshold is how many consecutive zero-length reads are
// tolerated before the connection is declared dead.
const emptyReadThreshold = 5

// Reconnector re-establishes a session's connection after a transport
// failure. Implementations must leave the transport with a live connection
// (via SetConn) before returning nil, or return a fatal session error.
type Reconnector interface {
	Reconnect() error
}

// Transport owns one TCP connection and the framing state around it.
type Transport struct {
	owner  Reconnector
	debug  bool
	logger zerolog.Logger

	// mu serializes writes and connection swaps. Interleaved partial
	// frames would corrupt the wire format.
	mu   sync.Mutex
	conn net.Conn

	// bufMu protects the receive buffer; the buffer is normally touched
	// only by the receive loop, but a reconnect triggered from the send
	// path resets it concurrently.
	bufMu sync.Mutex
	buf   []byte
}

// NewTransport constructs a Transport whose reconnects are delegated to
// owner. With debug set, every frame in and out is logged.
func NewTransport(owner Reconnector, debug bool) *Transport {
	return &Transport{
		owner:  owner,
		debug:  debug,
		logger: logx.Logger().With().Str("component", "transport").Logger(),
	}
}

// Dial opens the TCP connection and installs it on the transport.
func (t *Transport) Dial(host string, port int) error {
	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	t.SetConn(conn)
	return nil
}

// SetConn atomically swaps in a new connection under the send lock. The
// previous connection, if any, is closed.
func (t *Transport) SetConn(conn net.Conn) {
	t.mu.Lock()
	old := t.conn
	t.conn = conn
	t.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// ResetBuffer discards any partial record accumulated on the old
// connection. Called by owners as part of reconnecting.
func (t *Transport) ResetBuffer() {
	t.bufMu.Lock()
	t.buf = nil
	t.bufMu.Unlock()
}

// Close shuts the connection down. Subsequent sends and receives fail and
// are not retried once the owner reports the session disconnected.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// SendFrame encodes fields with the default CRLF+NUL terminator and writes
// the frame, retrying through the owner's reconnect procedure on failure.
// An outgoing frame is never dropped.
func (t *Transport) SendFrame(fields ...string) error {
	return t.SendFrameWith(DefaultTerminator, fields...)
}

// SendFrameWith is SendFrame with an explicit terminator, for the handshake
// sends that use a bare NUL.
func (t *Transport) SendFrameWith(terminator string, fields ...string) error {
	payload := EncodeFrame(fields, terminator)

	for {
		t.mu.Lock()
		conn := t.conn
		var err error
		if conn == nil {
			err = net.ErrClosed
		} else {
			_, err = conn.Write(payload)
		}
		t.mu.Unlock()

		if err == nil {
			if t.debug {
				t.logger.Debug().Bytes("frame", payload).Msg("frame sent")
			}
			return nil
		}

		t.logger.Warn().Err(err).Msg("frame write failed, reconnecting")
		if rerr := t.owner.Reconnect(); rerr != nil {
			return rerr
		}
	}
}

// TrySendFrame writes one frame without engaging the reconnect retry.
// Record handlers use it for the requests the reconnect handshake re-issues
// anyway; a reconnect must not start while a record is being handled.
func (t *Transport) TrySendFrame(fields ...string) error {
	payload := EncodeFrame(fields, DefaultTerminator)

	t.mu.Lock()
	conn := t.conn
	var err error
	if conn == nil {
		err = net.ErrClosed
	} else {
		_, err = conn.Write(payload)
	}
	t.mu.Unlock()

	if err != nil {
		return err
	}
	if t.debug {
		t.logger.Debug().Bytes("frame", payload).Msg("frame sent")
	}
	return nil
}

// RecvFrame blocks until one complete record is available and returns it.
// End of stream and socket errors are absorbed by the owner's reconnect
// procedure; a returned error is fatal for the session.
func (t *Transport) RecvFrame() (Record, error) {
	for {
		t.bufMu.Lock()
		rec, rest, ok := NextRecord(t.buf)
		t.buf = rest
		t.bufMu.Unlock()

		if ok {
			if t.debug {
				t.logger.Debug().Str("command", rec.Command).Strs("args", rec.Args).Msg("frame received")
			}
			return rec, nil
		}

		if err := t.fill(); err != nil {
			return Record{}, err
		}
	}
}

// fill reads from the socket until at least one byte lands in the buffer.
// Zero-length reads are counted; past the threshold, and on any read error,
// the owner's reconnect procedure runs.
func (t *Transport) fill() error {
	chunk := make([]byte, readChunkSize)
	empties := 0

	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		if conn == nil {
			return errs.New(errs.ErrNotConnected)
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			t.bufMu.Lock()
			t.buf = append(t.buf, chunk[:n]...)
			t.bufMu.Unlock()
			return nil
		}

		if err != nil {
			t.logger.Warn().Err(err).Msg("frame read failed, reconnecting")
			if rerr := t.owner.Reconnect(); rerr != nil {
				return rerr
			}
			empties = 0
			continue
		}

		empties++
		if empties > emptyReadThreshold {
			t.logger.Warn().Int("empty_reads", empties).Msg("connection stalled, reconnecting")
			if rerr := t.owner.Reconnect(); rerr != nil {
				return rerr
			}
			empties = 0
		}
	}
}
