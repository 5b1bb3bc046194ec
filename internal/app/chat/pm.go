/*
Package chat contains the core logic of the client.

This file defines the PM struct: the state machine and public API for the
private-messaging protocol. It is the smaller sibling of Room: same
transport, same loops, but authentication goes through the HTTP token
gateway and there is no roster or history.
*/
package chat

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatango/internal/app/auth"
	"chatango/internal/app/markup"
	"chatango/internal/app/user"
	"chatango/internal/app/wire"
	"chatango/internal/configs"
	"chatango/internal/pkg/errs"
	"chatango/internal/pkg/logx"
	"chatango/internal/pkg/randx"
)

// PM is one private-messaging session. Create it with NewPM, call Login,
// then pull events with NextEvent.
type PM struct {
	cfg       *configs.AppConfig
	gateway   auth.Gateway
	transport *wire.Transport
	queue     *EventQueue
	logger    zerolog.Logger

	username string
	password string

	handleMu sync.Mutex

	mu             sync.Mutex
	status         Status
	reconnectEpoch bool
	loginTime      float64
	uid            int64
}

// NewPM constructs a disconnected private-messaging session.
func NewPM(username, password string, gateway auth.Gateway, cfg *configs.AppConfig) *PM {
	p := &PM{
		cfg:      cfg,
		gateway:  gateway,
		queue:    NewEventQueue(),
		username: username,
		password: password,
		logger:   logx.Logger().With().Str("component", "pm").Str("user", strings.ToLower(username)).Logger(),
	}
	p.transport = wire.NewTransport(p, cfg.DebugFrames)
	return p
}

// Login resolves the auth token, connects to the PM server and starts the
// session loops. An empty token means the credentials are invalid.
func (p *PM) Login() error {
	token, err := p.gateway.FetchToken(p.username, p.password)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidCredentials, err)
	}
	if token == "" {
		return errs.New(errs.ErrInvalidCredentials)
	}

	uid, err := randx.UID()
	if err != nil {
		return err
	}

	p.setStatus(StatusConnecting)
	if err := p.transport.Dial(p.cfg.PMHost, p.cfg.Port); err != nil {
		p.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", p.cfg.PMHost, err)
	}

	p.logger.Info().
		Str("conn_id", randx.ConnectionID()).
		Str("server", p.cfg.PMHost).
		Msg("Connected, logging in.")

	p.mu.Lock()
	p.uid = uid
	p.loginTime = float64(time.Now().UnixNano()) / 1e9
	p.status = StatusRunning
	p.mu.Unlock()

	if err := p.transport.SendFrame("tlogin", token, "2", strconv.FormatInt(uid, 10)); err != nil {
		p.teardown()
		return err
	}

	go p.keepalive()
	go p.receiveLoop()
	return nil
}

// Disconnect tears the session down. NextEvent fails once the session is
// disconnected, even if events are still queued.
func (p *PM) Disconnect() {
	p.teardown()
}

// NextEvent blocks until the next event is available.
func (p *PM) NextEvent() (Event, error) {
	if p.Status() != StatusRunning {
		return nil, errs.New(errs.ErrNotConnected)
	}
	return p.queue.Next()
}

// Status returns the current connection status.
func (p *PM) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// LoginTime returns the session login time reported by the server.
func (p *PM) LoginTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loginTime
}

// UID returns the numeric id of the logged-in account, once the server has
// resolved it.
func (p *PM) UID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uid
}

// Send delivers a private message. Each line of text becomes its own
// paragraph on the wire.
func (p *PM) Send(target, text string) error {
	if p.Status() != StatusRunning {
		return errs.New(errs.ErrNotConnected)
	}
	return p.transport.SendFrame("msg", strings.ToLower(target), markup.WrapParagraphs(text))
}

// AddFriend adds a user to the friends list.
func (p *PM) AddFriend(username string) error {
	return p.transport.SendFrame("connect", strings.ToLower(username))
}

// RemoveFriend removes a user from the friends list.
func (p *PM) RemoveFriend(username string) error {
	return p.transport.SendFrame("delete", strings.ToLower(username))
}

// Block blocks a user.
func (p *PM) Block(username string) error {
	return p.transport.SendFrame("block", strings.ToLower(username))
}

// Unblock unblocks a blocked user.
func (p *PM) Unblock(username string) error {
	return p.transport.SendFrame("unblock", strings.ToLower(username))
}

// Reconnect implements wire.Reconnector. The auth token is re-resolved
// first; a failed resolution means the credential is no longer valid and
// is treated identically to a server-initiated kick.
func (p *PM) Reconnect() error {
	if p.Status() != StatusRunning {
		return errs.New(errs.ErrNotConnected)
	}

	token, err := p.gateway.FetchToken(p.username, p.password)
	if err != nil || token == "" {
		p.teardown()
		return errs.New(errs.ErrKickedOff)
	}

	connID := randx.ConnectionID()
	p.logger.Warn().Str("conn_id", connID).Msg("Reconnecting.")

	var conn net.Conn
	for {
		c, dialErr := net.Dial("tcp", net.JoinHostPort(p.cfg.PMHost, strconv.Itoa(p.cfg.Port)))
		if dialErr == nil {
			conn = c
			break
		}
		if p.Status() != StatusRunning {
			return errs.New(errs.ErrNotConnected)
		}
		p.logger.Warn().Err(dialErr).Msg("Reconnect dial failed, retrying.")
		time.Sleep(time.Second)
	}

	p.transport.SetConn(conn)
	p.transport.ResetBuffer()

	p.mu.Lock()
	uid := p.uid
	p.reconnectEpoch = true
	p.mu.Unlock()

	if err := p.transport.SendFrame("tlogin", token, "2", strconv.FormatInt(uid, 10)); err != nil {
		return err
	}

	p.logger.Info().Str("conn_id", connID).Msg("Reconnect complete.")
	return nil
}

// receiveLoop reads and handles records until the session disconnects.
// A kick is fatal; any other handler failure is logged and the loop moves
// to the next record.
func (p *PM) receiveLoop() {
	for p.Status() == StatusRunning {
		rec, err := p.transport.RecvFrame()
		if err != nil {
			if p.Status() == StatusRunning {
				p.logger.Error().Err(err).Msg("Receive loop terminated.")
				p.teardown()
			}
			return
		}

		if err := p.handle(rec); err != nil {
			if errs.Is(err, errs.ErrKickedOff) {
				p.logger.Warn().Msg("Kicked off by server.")
				p.teardown()
				return
			}
			p.logger.Error().Err(err).Str("command", rec.Command).Msg("Record handling failed.")
		}
	}
}

// keepalive sends an empty frame every interval while the session runs.
func (p *PM) keepalive() {
	ticker := time.NewTicker(p.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for range ticker.C {
		if p.Status() != StatusRunning {
			return
		}
		if err := p.transport.SendFrame(""); err != nil {
			p.logger.Warn().Err(err).Msg("Keepalive send failed.")
			return
		}
	}
}

func (p *PM) teardown() {
	p.mu.Lock()
	already := p.status == StatusDisconnected
	p.status = StatusDisconnected
	p.mu.Unlock()

	if already {
		return
	}
	_ = p.transport.Close()
	p.queue.Close()
	p.logger.Info().Msg("Session disconnected.")
}

func (p *PM) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

func (p *PM) isReconnectEpoch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reconnectEpoch
}

func (p *PM) replyTo(username string) ReplyFunc {
	return func(text string) error {
		return p.Send(username, text)
	}
}

// handle dispatches one record to its effect. Unknown commands are
// ignored.
func (p *PM) handle(rec wire.Record) error {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()

	switch rec.Command {
	case "time":
		t, err := strconv.ParseFloat(arg(rec.Args, 0), 64)
		if err != nil {
			return errs.Wrap(errs.ErrMalformedRecord, err)
		}
		p.mu.Lock()
		p.loginTime = t
		p.mu.Unlock()
		return nil

	case "seller_name":
		uid, err := strconv.ParseInt(arg(rec.Args, 1), 10, 64)
		if err != nil {
			return errs.Wrap(errs.ErrMalformedRecord, err)
		}
		p.mu.Lock()
		p.uid = uid
		p.mu.Unlock()
		return nil

	case "kickingoff":
		return errs.New(errs.ErrKickedOff)

	case "wloffline":
		username := strings.ToLower(arg(rec.Args, 0))
		p.queue.Push(&LogoutEvent{Username: username, Reply: p.replyTo(username)})
		return nil

	case "wlonline":
		username := strings.ToLower(arg(rec.Args, 0))
		p.queue.Push(&LoginEvent{Username: username, Reply: p.replyTo(username)})
		return nil

	case "msg":
		return p.handleMessage(rec.Args)

	case "msgoff":
		// Offline messages replay only while resuming a dropped
		// connection.
		if p.isReconnectEpoch() {
			return p.handleMessage(rec.Args)
		}
		return nil

	default:
		return nil
	}
}

// handleMessage parses an incoming private message. A leading '*' marks an
// anonymous sender whose name comes from the last four characters of the
// anon-uid field.
func (p *PM) handleMessage(args []string) error {
	if len(args) < 5 {
		return errs.New(errs.ErrMalformedRecord)
	}

	username := args[0]
	anonUID := args[1]
	postTime, _ := strconv.ParseFloat(args[3], 64)
	raw := strings.Join(args[5:], ":")

	kind := user.KindRegistered
	if strings.HasPrefix(username, "*") {
		kind = user.KindAnonymous
		tail := anonUID
		if len(tail) > 4 {
			tail = tail[len(tail)-4:]
		}
		username = "anon" + tail
	}

	msg := &Message{
		PostTime: postTime,
		Raw:      raw,
		Text:     markup.ParagraphsToLines(raw),
		Author:   user.User{DisplayName: username, Kind: kind},
		Origin:   OriginLive,
	}

	p.queue.Push(&MessageEvent{Message: msg, Reply: p.replyTo(username)})
	return nil
}
