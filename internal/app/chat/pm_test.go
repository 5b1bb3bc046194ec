package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatango/internal/app/user"
	"chatango/internal/app/wire"
	"chatango/internal/pkg/errs"
)

type stubGateway struct {
	token string
	err   error
}

func (g stubGateway) FetchToken(username, password string) (string, error) {
	return g.token, g.err
}

func testPM(t *testing.T) (*PM, *fakeConn) {
	t.Helper()
	p := NewPM("Alice", "pw", stubGateway{token: "tok"}, testConfig())
	fc := newFakeConn()
	p.transport.SetConn(fc)
	p.status = StatusRunning
	return p, fc
}

func TestPMLoginInvalidCredentials(t *testing.T) {
	p := NewPM("Alice", "wrong", stubGateway{token: ""}, testConfig())
	err := p.Login()
	assert.True(t, errs.Is(err, errs.ErrInvalidCredentials))

	p = NewPM("Alice", "pw", stubGateway{err: assert.AnError}, testConfig())
	err = p.Login()
	assert.True(t, errs.Is(err, errs.ErrInvalidCredentials), "gateway failures surface as credential errors")
}

func TestPMServerTime(t *testing.T) {
	p, _ := testPM(t)

	require.NoError(t, p.handle(wire.Record{Command: "time", Args: []string{"123.5"}}))
	assert.InDelta(t, 123.5, p.LoginTime(), 0.001)

	err := p.handle(wire.Record{Command: "time", Args: []string{"junk"}})
	assert.True(t, errs.Is(err, errs.ErrMalformedRecord))
}

func TestPMSellerName(t *testing.T) {
	p, _ := testPM(t)

	require.NoError(t, p.handle(wire.Record{Command: "seller_name", Args: []string{"alice", "42"}}))
	assert.Equal(t, int64(42), p.UID())
}

func TestPMKickIsFatal(t *testing.T) {
	p, _ := testPM(t)

	err := p.handle(wire.Record{Command: "kickingoff"})
	assert.True(t, errs.Is(err, errs.ErrKickedOff))
}

func TestPMPresenceEvents(t *testing.T) {
	p, _ := testPM(t)

	require.NoError(t, p.handle(wire.Record{Command: "wlonline", Args: []string{"Bob", "55.0"}}))
	require.NoError(t, p.handle(wire.Record{Command: "wloffline", Args: []string{"Bob", "56.0"}}))

	events := pendingEvents(p.queue)
	require.Len(t, events, 2)

	login, ok := events[0].(*LoginEvent)
	require.True(t, ok)
	assert.Equal(t, "bob", login.Username)
	assert.Nil(t, login.User, "presence records carry only the name")

	logout, ok := events[1].(*LogoutEvent)
	require.True(t, ok)
	assert.Equal(t, "bob", logout.Username)
}

func TestPMIncomingMessage(t *testing.T) {
	p, _ := testPM(t)

	args := []string{"Bob", "", "x", "10.5", "0", "<P>hi</P><P>there</P>"}
	require.NoError(t, p.handle(wire.Record{Command: "msg", Args: args}))

	events := pendingEvents(p.queue)
	require.Len(t, events, 1)
	me, ok := events[0].(*MessageEvent)
	require.True(t, ok)

	msg := me.Message
	assert.Equal(t, "hi\nthere", msg.Text)
	assert.Equal(t, "Bob", msg.Author.DisplayName)
	assert.Equal(t, user.KindRegistered, msg.Author.Kind)
	assert.InDelta(t, 10.5, msg.PostTime, 0.001)
	assert.Equal(t, OriginLive, msg.Origin)
}

func TestPMAnonymousSender(t *testing.T) {
	p, _ := testPM(t)

	args := []string{"*anon", "987654321", "x", "10.5", "0", "<P>psst</P>"}
	require.NoError(t, p.handle(wire.Record{Command: "msg", Args: args}))

	events := pendingEvents(p.queue)
	require.Len(t, events, 1)
	msg := events[0].(*MessageEvent).Message
	assert.Equal(t, "anon4321", msg.Author.DisplayName)
	assert.Equal(t, user.KindAnonymous, msg.Author.Kind)
}

func TestPMColonBearingPayload(t *testing.T) {
	p, _ := testPM(t)

	args := []string{"Bob", "", "x", "10.5", "0", "<P>see", " this</P>"}
	require.NoError(t, p.handle(wire.Record{Command: "msg", Args: args}))

	events := pendingEvents(p.queue)
	require.Len(t, events, 1)
	assert.Equal(t, "see: this", events[0].(*MessageEvent).Message.Text)
}

func TestPMOfflineMessagesGatedByReconnect(t *testing.T) {
	p, _ := testPM(t)

	args := []string{"Bob", "", "x", "10.5", "0", "<P>missed you</P>"}
	require.NoError(t, p.handle(wire.Record{Command: "msgoff", Args: args}))
	assert.Empty(t, pendingEvents(p.queue), "offline replays are dropped on a fresh login")

	p.reconnectEpoch = true
	require.NoError(t, p.handle(wire.Record{Command: "msgoff", Args: args}))
	assert.Len(t, pendingEvents(p.queue), 1)
}

func TestPMSendWrapsParagraphs(t *testing.T) {
	p, fc := testPM(t)

	require.NoError(t, p.Send("Bob", "line1\nline2"))
	assert.Equal(t, "msg:bob:<P>line1</P><P>line2</P>\r\n\x00", fc.frames())
}

func TestPMSendNotConnected(t *testing.T) {
	p := NewPM("Alice", "pw", stubGateway{token: "tok"}, testConfig())
	err := p.Send("Bob", "hello")
	assert.True(t, errs.Is(err, errs.ErrNotConnected))
}

func TestPMContactCommands(t *testing.T) {
	p, fc := testPM(t)

	require.NoError(t, p.AddFriend("Bob"))
	require.NoError(t, p.RemoveFriend("Bob"))
	require.NoError(t, p.Block("Troll"))
	require.NoError(t, p.Unblock("Troll"))

	expected := "connect:bob\r\n\x00" +
		"delete:bob\r\n\x00" +
		"block:troll\r\n\x00" +
		"unblock:troll\r\n\x00"
	assert.Equal(t, expected, fc.frames())
}

func TestPMReplyTargetsSender(t *testing.T) {
	p, fc := testPM(t)

	args := []string{"Bob", "", "x", "10.5", "0", "<P>ping</P>"}
	require.NoError(t, p.handle(wire.Record{Command: "msg", Args: args}))

	events := pendingEvents(p.queue)
	require.Len(t, events, 1)
	require.NoError(t, events[0].(*MessageEvent).Reply("pong"))
	assert.Equal(t, "msg:bob:<P>pong</P>\r\n\x00", fc.frames())
}
