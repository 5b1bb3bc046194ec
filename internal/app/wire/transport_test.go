package wire

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptConn replays a fixed sequence of reads and captures writes.
type scriptConn struct {
	mu     sync.Mutex
	reads  [][]byte
	writes bytes.Buffer
}

func (c *scriptConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	n := copy(b, c.reads[0])
	if n == len(c.reads[0]) {
		c.reads = c.reads[1:]
	} else {
		c.reads[0] = c.reads[0][n:]
	}
	return n, nil
}

func (c *scriptConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes.Write(b)
}

func (c *scriptConn) Close() error                     { return nil }
func (c *scriptConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (c *scriptConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (c *scriptConn) SetDeadline(time.Time) error      { return nil }
func (c *scriptConn) SetReadDeadline(time.Time) error  { return nil }
func (c *scriptConn) SetWriteDeadline(time.Time) error { return nil }

func (c *scriptConn) written() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes.String()
}

// failingOwner refuses to reconnect, making transport failures fatal.
type failingOwner struct {
	err error
}

func (o failingOwner) Reconnect() error { return o.err }

// healingOwner installs a replacement connection on reconnect.
type healingOwner struct {
	tr   *Transport
	conn net.Conn
}

func (o *healingOwner) Reconnect() error {
	o.tr.SetConn(o.conn)
	return nil
}

func TestSendFrameTerminators(t *testing.T) {
	conn := &scriptConn{}
	tr := NewTransport(failingOwner{err: errors.New("no reconnect")}, false)
	tr.SetConn(conn)

	require.NoError(t, tr.SendFrame("bmsg:t12r", "hi"))
	require.NoError(t, tr.SendFrameWith(BareTerminator, "bauth", "testroom"))
	require.NoError(t, tr.SendFrame(""))

	assert.Equal(t, "bmsg:t12r:hi\r\n\x00bauth:testroom\x00\r\n\x00", conn.written())
}

func TestTrySendFrameNeverReconnects(t *testing.T) {
	sentinel := errors.New("reconnect attempted")
	tr := NewTransport(failingOwner{err: sentinel}, false)

	// No connection: the frame fails without engaging the owner.
	err := tr.TrySendFrame("getpremium", "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel)

	conn := &scriptConn{}
	tr.SetConn(conn)
	require.NoError(t, tr.TrySendFrame("getpremium", "1"))
	assert.Equal(t, "getpremium:1\r\n\x00", conn.written())
}

func TestRecvFrameAcrossChunkedReads(t *testing.T) {
	conn := &scriptConn{reads: [][]byte{
		[]byte("ok:1:2\r\n\x00in"),
		[]byte("ited\r\n\x00"),
	}}
	tr := NewTransport(failingOwner{err: errors.New("no reconnect")}, false)
	tr.SetConn(conn)

	rec, err := tr.RecvFrame()
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Command)
	assert.Equal(t, []string{"1", "2"}, rec.Args)

	rec, err = tr.RecvFrame()
	require.NoError(t, err)
	assert.Equal(t, "inited", rec.Command)
	assert.Empty(t, rec.Args)
}

func TestRecvFrameFatalWhenReconnectFails(t *testing.T) {
	sentinel := errors.New("session gone")
	conn := &scriptConn{}
	tr := NewTransport(failingOwner{err: sentinel}, false)
	tr.SetConn(conn)

	_, err := tr.RecvFrame()
	assert.ErrorIs(t, err, sentinel)
}

func TestSendFrameRetriesThroughReconnect(t *testing.T) {
	replacement := &scriptConn{}
	tr := NewTransport(nil, false)
	tr.owner = &healingOwner{tr: tr, conn: replacement}

	// No connection installed: the first write fails, the owner heals the
	// transport, and the frame still goes out.
	require.NoError(t, tr.SendFrame("msg", "bob", "<P>hi</P>"))
	assert.Equal(t, "msg:bob:<P>hi</P>\r\n\x00", replacement.written())
}

func TestResetBufferDropsPartialRecord(t *testing.T) {
	conn := &scriptConn{reads: [][]byte{[]byte("partial:rec")}}
	tr := NewTransport(failingOwner{err: errors.New("no reconnect")}, false)
	tr.SetConn(conn)

	// Pull the partial bytes into the buffer, then abandon them.
	_, err := tr.RecvFrame()
	require.Error(t, err)
	tr.ResetBuffer()

	tr.SetConn(&scriptConn{reads: [][]byte{[]byte("fresh\r\n\x00")}})
	rec, err := tr.RecvFrame()
	require.NoError(t, err)
	assert.Equal(t, "fresh", rec.Command)
	assert.Empty(t, rec.Args)
}
