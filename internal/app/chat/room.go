/*
Package chat contains the core logic of the client.

This file defines the Room struct: the state machine and public API for the
per-room group-chat protocol. A connected room runs one receive loop and
one keepalive loop; all session state is mutated by the handler path only,
while public API calls enqueue outgoing frames.
*/
package chat

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chatango/internal/app/markup"
	"chatango/internal/app/profile"
	"chatango/internal/app/user"
	"chatango/internal/app/wire"
	"chatango/internal/configs"
	"chatango/internal/pkg/errs"
	"chatango/internal/pkg/logx"
	"chatango/internal/pkg/randx"
)

// Status tracks where a session is in its connection lifecycle.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusHandshaking
	StatusRunning
)

// sentinel the participant records use for an absent name field.
const noName = "None"

// errReconnect signals the receive loop to run the reconnect procedure
// after the current record is fully handled. Running it inside the handler
// would drain the new handshake under the handler lock.
var errReconnect = errors.New("reconnect requested by server")

// Room is one group-chat session. Create it with NewRoom, call Login, then
// pull events with NextEvent.
type Room struct {
	// Name is the lowercased room name.
	Name string

	server    string
	cfg       *configs.AppConfig
	transport *wire.Transport
	queue     *EventQueue
	history   *HistoryStore
	roster    *ParticipantRegistry

	// sayLimiter is the client-side flood guard; the server answers
	// flooding with show_fw forced reconnects.
	sayLimiter *rate.Limiter

	logger zerolog.Logger

	// handleMu serializes record handling. The receive loop is the usual
	// caller, but a reconnect triggered from the send path drains the
	// handshake on the sender's goroutine. Reconnect must never run while
	// handleMu is held.
	handleMu sync.Mutex

	// reconnectMu serializes reconnect attempts; the send and receive
	// paths can detect a dead connection at the same time.
	reconnectMu sync.Mutex

	// mu guards the mutable session state below.
	mu             sync.Mutex
	status         Status
	reconnectEpoch bool
	self           user.User
	password       string
	mods           map[string]struct{}
	isAdmin        bool
	premium        bool
	roomSize       int
	badwordList    []string
	badwords       []*regexp.Regexp
	obeyBadwords   bool
	silenced       bool
	ignores        map[string]func(*Message) bool
	pending        map[string]*Message
	font           markup.Font
	epoch          int
}

// NewRoom constructs a disconnected room session. The target server is
// fixed by the shard selector at construction time.
func NewRoom(name string, cfg *configs.AppConfig) *Room {
	name = strings.ToLower(name)

	r := &Room{
		Name:         name,
		server:       ServerAddr(name),
		cfg:          cfg,
		queue:        NewEventQueue(),
		history:      NewHistoryStore(cfg.HistoryCapacity),
		roster:       NewParticipantRegistry(),
		sayLimiter:   rate.NewLimiter(rate.Every(600*time.Millisecond), 5),
		mods:         make(map[string]struct{}),
		ignores:      make(map[string]func(*Message) bool),
		pending:      make(map[string]*Message),
		obeyBadwords: true,
		logger:       logx.Logger().With().Str("room", name).Logger(),
	}
	r.transport = wire.NewTransport(r, cfg.DebugFrames)
	return r
}

// Login connects and authenticates. Both credentials log in a registered
// account, a bare username claims a temporary name, and neither joins
// anonymously. If the session is already running, only a re-login command
// is sent over the live connection.
func (r *Room) Login(username, password string) error {
	kind := user.KindAnonymous
	switch {
	case username != "" && password != "":
		kind = user.KindRegistered
	case username != "":
		kind = user.KindTemporary
	}

	if r.Status() == StatusRunning {
		r.mu.Lock()
		r.self.DisplayName = username
		r.self.Kind = kind
		r.password = password
		r.mu.Unlock()

		switch kind {
		case user.KindRegistered:
			return r.transport.SendFrame("blogin", username, password)
		case user.KindTemporary:
			return r.transport.SendFrame("blogin", username)
		default:
			return r.transport.SendFrame("blogout")
		}
	}

	uid, err := randx.UID()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.self = user.User{UID: uid, DisplayName: username, Kind: kind}
	r.password = password
	r.status = StatusConnecting
	r.mu.Unlock()

	if err := r.transport.Dial(r.server, r.cfg.Port); err != nil {
		r.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to connect to %s: %w", r.server, err)
	}

	r.logger.Info().
		Str("conn_id", randx.ConnectionID()).
		Str("server", r.server).
		Str("kind", kind.String()).
		Msg("Connected, starting handshake.")
	r.setStatus(StatusHandshaking)

	if kind == user.KindRegistered {
		err = r.transport.SendFrameWith(wire.BareTerminator,
			"bauth", r.Name, strconv.FormatInt(uid, 10), username, password)
	} else {
		err = r.transport.SendFrameWith(wire.BareTerminator, "bauth", r.Name)
	}
	if err != nil {
		r.teardown()
		return err
	}

	epoch, err := randx.KeepaliveEpoch()
	if err != nil {
		r.teardown()
		return err
	}
	r.setEpoch(epoch)

	if err := r.drainUntilInited(); err != nil {
		r.teardown()
		return err
	}

	r.setStatus(StatusRunning)
	go r.keepalive(epoch)
	go r.receiveLoop()
	return nil
}

// Logout drops back to anonymous without closing the connection.
func (r *Room) Logout() error {
	if r.Status() != StatusRunning {
		return errs.New(errs.ErrNotConnected)
	}
	return r.transport.SendFrame("blogout")
}

// Disconnect tears the session down. NextEvent fails once the session is
// disconnected, even if events are still queued.
func (r *Room) Disconnect() {
	r.teardown()
}

// NextEvent blocks until the next event is available.
func (r *Room) NextEvent() (Event, error) {
	if !r.connected() {
		return nil, errs.New(errs.ErrNotConnected)
	}
	return r.queue.Next()
}

// Status returns the current connection status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Self returns a snapshot of the logged-in user.
func (r *Room) Self() user.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self
}

// IsPremium reports whether the logged-in account has premium status.
func (r *Room) IsPremium() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.premium
}

// IsAdmin reports whether the logged-in account owns the room.
func (r *Room) IsAdmin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isAdmin
}

// Size returns the participant count last reported by the server.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomSize
}

// Badwords returns the decoded badword list last pushed by the server.
func (r *Room) Badwords() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.badwordList))
	copy(out, r.badwordList)
	return out
}

// History returns a snapshot of the bounded message history, oldest first.
func (r *Room) History() []*Message {
	return r.history.Messages()
}

// Online returns a snapshot of the tracked online participants.
func (r *Room) Online() []user.User {
	return r.roster.Find(func(user.User) bool { return true })
}

// Say sends a message to the room. Silenced sessions and messages over the
// flood guard are dropped without error. With escapeHTML set, markup in the
// text is neutralized; badword masking applies when badword obedience is
// on, and registered users prefix their font markup.
func (r *Room) Say(text string, escapeHTML bool) error {
	if r.Status() != StatusRunning {
		return errs.New(errs.ErrNotConnected)
	}

	r.mu.Lock()
	silenced := r.silenced
	obey := r.obeyBadwords
	patterns := r.badwords
	kind := r.self.Kind
	font := r.font
	r.mu.Unlock()

	if silenced {
		return nil
	}
	if !r.sayLimiter.Allow() {
		r.logger.Warn().Msg("Outgoing message dropped by flood guard.")
		return nil
	}

	if escapeHTML {
		text = strings.ReplaceAll(text, "<", "&lt;")
	}
	if obey {
		for _, re := range patterns {
			text = re.ReplaceAllString(text, "*")
		}
	}
	if kind == user.KindRegistered {
		text = font.Markup() + text
	}

	return r.transport.SendFrame("bmsg:t12r", text)
}

// KeepHistory adjusts the history bound (floor 10).
func (r *Room) KeepHistory(size int) {
	r.history.SetCapacity(size)
}

// ObeyBadwords controls whether outgoing messages are masked against the
// room's badword list.
func (r *Room) ObeyBadwords(on bool) {
	r.mu.Lock()
	r.obeyBadwords = on
	r.mu.Unlock()
}

// Silence controls whether Say is a no-op.
func (r *Room) Silence(on bool) {
	r.mu.Lock()
	r.silenced = on
	r.mu.Unlock()
}

// Ignore registers a named predicate applied to live messages before they
// are queued; a true result drops the message silently.
func (r *Room) Ignore(name string, pred func(*Message) bool) {
	if pred == nil {
		return
	}
	r.mu.Lock()
	r.ignores[name] = pred
	r.mu.Unlock()
}

// Unignore removes a named ignore predicate. Unknown names are a no-op.
func (r *Room) Unignore(name string) {
	r.mu.Lock()
	delete(r.ignores, name)
	r.mu.Unlock()
}

// SetFont updates the font markup prefix. Size is capped at 22 for premium
// accounts and 14 otherwise; zero or empty arguments leave their field
// unchanged.
func (r *Room) SetFont(size int, family, color, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if size > 0 {
		if r.premium && size > 22 {
			size = 22
		} else if !r.premium && size > 14 {
			size = 14
		}
		r.font.Size = size
	}
	if family != "" {
		r.font.Family = family
	}
	if color != "" {
		r.font.Color = color
	}
	if name != "" {
		r.font.Name = name
	}
}

// FindUser returns user snapshots matching the predicate, searched across
// the online roster and/or the history authors.
func (r *Room) FindUser(pred func(user.User) bool, online, history bool) []user.User {
	var matches []user.User
	if online {
		matches = append(matches, r.roster.Find(pred)...)
	}
	if history {
		for _, msg := range r.history.Messages() {
			if pred(msg.Author) {
				matches = append(matches, msg.Author)
			}
		}
	}
	return matches
}

// IsOnline reports whether a registered user with the given name is in the
// roster.
func (r *Room) IsOnline(username string) bool {
	key := strings.ToLower(username)
	matches := r.FindUser(func(u user.User) bool {
		return u.Key() == key && u.Kind == user.KindRegistered
	}, true, false)
	return len(matches) > 0
}

// IsMod reports whether the given user moderates the room. With an empty
// name it checks the logged-in user, which requires a registered login.
func (r *Room) IsMod(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if username == "" {
		if r.self.Kind != user.KindRegistered {
			return false
		}
		username = r.self.Key()
	}
	_, ok := r.mods[strings.ToLower(username)]
	return ok
}

// UserHistory returns the stored messages written by the given user,
// matched by name for registered users and by uid for the rest.
func (r *Room) UserHistory(target user.User) []*Message {
	return r.history.Find(func(msg *Message) bool {
		author := msg.Author
		switch author.Kind {
		case user.KindRegistered:
			return author.Key() == target.Key()
		case user.KindAnonymous:
			return target.UID != 0 && author.UID == target.UID
		default:
			return target.UID != 0 && author.UID == target.UID &&
				author.Key() == target.Key() && author.Kind == target.Kind
		}
	})
}

// Ban bans a user, identified by moderation id, ip and name.
func (r *Room) Ban(u user.User) error {
	return r.transport.SendFrame("block", u.ModerationID, u.IP, u.Key())
}

// Unban lifts a ban by bare username.
func (r *Room) Unban(username string) error {
	return r.transport.SendFrame("removeblock", "", "", strings.ToLower(username))
}

// UnbanUser lifts a ban using a full user snapshot.
func (r *Room) UnbanUser(u user.User) error {
	return r.transport.SendFrame("removeblock", u.ModerationID, u.IP, u.Key())
}

// Delete removes a single message by its permanent id.
func (r *Room) Delete(msg *Message) error {
	return r.transport.SendFrame("delmsg", msg.ID)
}

// DeleteAll removes every post by the given username, one delete-all
// command per moderation id found across the roster and history.
func (r *Room) DeleteAll(username string) error {
	key := strings.ToLower(username)
	matches := r.FindUser(func(u user.User) bool { return u.Key() == key }, true, true)

	sent := make(map[string]struct{})
	for _, u := range matches {
		if u.ModerationID == "" {
			continue
		}
		if _, done := sent[u.ModerationID]; done {
			continue
		}
		sent[u.ModerationID] = struct{}{}
		if err := r.transport.SendFrame("delallmsg", u.ModerationID); err != nil {
			return err
		}
	}
	return nil
}

// UseBackground toggles the message background. Premium only; reports
// whether the command applied.
func (r *Room) UseBackground(on bool) (bool, error) {
	if !r.IsPremium() {
		return false, nil
	}
	value := "0"
	if on {
		value = "1"
	}
	return true, r.transport.SendFrame("msgbg", value)
}

// ApplyBackground updates the profile background over HTTP and announces
// the change to the room. Premium only; reports whether it applied.
func (r *Room) ApplyBackground(svc *profile.Service, bg profile.Background) (bool, error) {
	if !r.IsPremium() {
		return false, nil
	}

	r.mu.Lock()
	username := r.self.Key()
	password := r.password
	r.mu.Unlock()

	if err := svc.Update(username, password, bg); err != nil {
		return false, err
	}
	return true, r.transport.SendFrame("miu")
}

// Reconnect implements wire.Reconnector: it reopens the socket to the same
// server, resends auth, marks the reconnect epoch and drains the handshake
// until inited. A deliberately disconnected session refuses to come back.
func (r *Room) Reconnect() error {
	if !r.connected() {
		return errs.New(errs.ErrNotConnected)
	}

	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	if !r.connected() {
		return errs.New(errs.ErrNotConnected)
	}

	connID := randx.ConnectionID()
	r.logger.Warn().Str("conn_id", connID).Str("server", r.server).Msg("Reconnecting.")

	var conn net.Conn
	for {
		c, err := net.Dial("tcp", net.JoinHostPort(r.server, strconv.Itoa(r.cfg.Port)))
		if err == nil {
			conn = c
			break
		}
		if !r.connected() {
			return errs.New(errs.ErrNotConnected)
		}
		r.logger.Warn().Err(err).Msg("Reconnect dial failed, retrying.")
		time.Sleep(time.Second)
	}

	r.transport.SetConn(conn)
	r.transport.ResetBuffer()

	r.mu.Lock()
	self := r.self
	password := r.password
	r.reconnectEpoch = true
	r.mu.Unlock()

	var err error
	if self.Kind == user.KindRegistered {
		err = r.transport.SendFrame("bauth", r.Name,
			strconv.FormatInt(self.UID, 10), self.DisplayName, password)
	} else {
		err = r.transport.SendFrameWith(wire.BareTerminator, "bauth", r.Name)
	}
	if err != nil {
		return err
	}

	// Invalidate the keepalive loop captured on the old connection.
	epoch, err := randx.KeepaliveEpoch()
	if err == nil {
		r.setEpoch(epoch)
		go r.keepalive(epoch)
	}

	if err := r.drainUntilInited(); err != nil {
		return err
	}
	r.logger.Info().Str("conn_id", connID).Msg("Reconnect complete.")
	return nil
}

// receiveLoop reads and handles records until the session disconnects. A
// handler failure is logged and the loop moves to the next record.
func (r *Room) receiveLoop() {
	for r.connected() {
		rec, err := r.transport.RecvFrame()
		if err != nil {
			if r.connected() {
				r.logger.Error().Err(err).Msg("Receive loop terminated.")
				r.teardown()
			}
			return
		}

		if err := r.handle(rec); err != nil {
			if errors.Is(err, errReconnect) {
				if rerr := r.Reconnect(); rerr != nil {
					r.logger.Error().Err(rerr).Msg("Forced reconnect failed.")
					r.teardown()
					return
				}
				continue
			}
			r.logger.Error().Err(err).Str("command", rec.Command).Msg("Record handling failed.")
		}
	}
}

// keepalive sends an empty frame on every tick while its captured epoch is
// still the session's current one. A stale loop surviving a reconnect
// exits at its next tick.
func (r *Room) keepalive(epoch int) {
	ticker := time.NewTicker(r.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !r.connected() || r.currentEpoch() != epoch {
			return
		}
		if err := r.transport.SendFrame(""); err != nil {
			r.logger.Warn().Err(err).Msg("Keepalive send failed.")
			return
		}
	}
}

// drainUntilInited synchronously handles records until the server declares
// the handshake complete.
func (r *Room) drainUntilInited() error {
	for {
		rec, err := r.transport.RecvFrame()
		if err != nil {
			return err
		}

		if rec.Command == "denied" {
			r.teardown()
			return errs.New(errs.ErrLoginDenied)
		}

		if err := r.handle(rec); err != nil && !errors.Is(err, errReconnect) {
			r.logger.Error().Err(err).Str("command", rec.Command).Msg("Handshake record failed.")
		}

		if rec.Command == "inited" {
			return nil
		}
	}
}

func (r *Room) teardown() {
	r.mu.Lock()
	already := r.status == StatusDisconnected
	r.status = StatusDisconnected
	r.mu.Unlock()

	if already {
		return
	}
	_ = r.transport.Close()
	r.queue.Close()
	r.logger.Info().Msg("Session disconnected.")
}

func (r *Room) connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status != StatusDisconnected
}

func (r *Room) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Room) setEpoch(epoch int) {
	r.mu.Lock()
	r.epoch = epoch
	r.mu.Unlock()
}

func (r *Room) currentEpoch() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

func (r *Room) isReconnectEpoch() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconnectEpoch
}

func (r *Room) roomReply() ReplyFunc {
	return func(text string) error {
		return r.Say(text, false)
	}
}

// arg returns args[i], or the empty string when the record is shorter.
// Records are best-effort parsed; a short record never crashes a handler.
func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// handle dispatches one record to its effect. Unknown commands are
// ignored.
func (r *Room) handle(rec wire.Record) error {
	r.handleMu.Lock()
	defer r.handleMu.Unlock()

	switch rec.Command {
	case "ok":
		return r.handleOK(rec.Args)
	case "denied":
		r.teardown()
		return nil
	case "inited":
		return r.handleInited()
	case "pwdok":
		r.setSelfKind(user.KindRegistered, false)
		return r.transport.TrySendFrame("getpremium", "1")
	case "aliasok":
		r.setSelfKind(user.KindTemporary, false)
		return r.transport.TrySendFrame("getpremium", "1")
	case "logoutok":
		r.setSelfKind(user.KindAnonymous, true)
		return r.transport.TrySendFrame("getpremium", "1")
	case "show_fw", "show_tb":
		return errReconnect
	case "ubw":
		return r.transport.TrySendFrame("getbannedwords")
	case "bw":
		return r.handleBadwords(rec.Args)
	case "premium":
		r.mu.Lock()
		r.premium = arg(rec.Args, 1) != "0" && arg(rec.Args, 1) != ""
		r.mu.Unlock()
		return nil
	case "n":
		size, err := strconv.ParseInt(arg(rec.Args, 0), 16, 64)
		if err != nil {
			return errs.Wrap(errs.ErrMalformedRecord, err)
		}
		r.mu.Lock()
		r.roomSize = int(size)
		r.mu.Unlock()
		return nil
	case "mods":
		r.mu.Lock()
		r.mods = make(map[string]struct{}, len(rec.Args))
		for _, m := range rec.Args {
			if m != "" {
				r.mods[strings.ToLower(m)] = struct{}{}
			}
		}
		r.mu.Unlock()
		return nil
	case "b":
		return r.handleRoomMessage(rec.Args, true)
	case "i":
		return r.handleRoomMessage(rec.Args, false)
	case "u":
		return r.handleIDConfirmation(rec.Args)
	case "g_participants":
		return r.handleBulkParticipants(rec.Args)
	case "participant":
		return r.handleParticipant(rec.Args)
	default:
		return nil
	}
}

// handleOK captures the handshake identity record.
func (r *Room) handleOK(args []string) error {
	uid, _ := strconv.ParseInt(arg(args, 1), 10, 64)
	loginTime, _ := strconv.ParseFloat(arg(args, 4), 64)

	mods := make(map[string]struct{})
	for _, m := range strings.Split(arg(args, 6), ";") {
		if m != "" {
			mods[strings.ToLower(m)] = struct{}{}
		}
	}

	var kind user.Kind
	switch arg(args, 2) {
	case "M":
		kind = user.KindRegistered
	case "C":
		kind = user.KindTemporary
	case "N":
		kind = user.KindAnonymous
	default:
		return errs.New(errs.ErrMalformedRecord)
	}

	r.mu.Lock()
	r.isAdmin = arg(args, 0) != "" && arg(args, 0) != "0"
	if uid != 0 {
		r.self.UID = uid
	}
	r.self.Kind = kind
	r.self.LoginTime = loginTime
	r.self.IP = arg(args, 5)
	r.mods = mods
	r.mu.Unlock()
	return nil
}

// handleInited subscribes to the participant stream, requests the badword
// list and premium status, and claims the temporary name if one was given.
// Auth alone does not claim a temporary name.
func (r *Room) handleInited() error {
	if err := r.transport.TrySendFrame("g_participants:start"); err != nil {
		return err
	}
	if err := r.transport.TrySendFrame("getbannedwords"); err != nil {
		return err
	}
	if err := r.transport.TrySendFrame("checkbannedwords"); err != nil {
		return err
	}
	if err := r.transport.TrySendFrame("getpremium", "1"); err != nil {
		return err
	}

	r.mu.Lock()
	kind := r.self.Kind
	name := r.self.DisplayName
	r.mu.Unlock()

	if kind == user.KindTemporary {
		return r.transport.TrySendFrame("blogin", name)
	}
	return nil
}

func (r *Room) setSelfKind(kind user.Kind, clearName bool) {
	r.mu.Lock()
	r.self.Kind = kind
	if clearName {
		r.self.DisplayName = ""
	}
	r.mu.Unlock()
}

// handleBadwords decodes the URL-encoded comma-separated badword list and
// rebuilds the masking patterns.
func (r *Room) handleBadwords(args []string) error {
	raw := arg(args, 1)
	if raw == "" {
		r.mu.Lock()
		r.badwordList = nil
		r.badwords = nil
		r.mu.Unlock()
		return nil
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return errs.Wrap(errs.ErrMalformedRecord, err)
	}
	words := strings.Split(strings.Trim(decoded, ","), ",")

	r.mu.Lock()
	r.badwordList = words
	r.badwords = markup.CompileBadwords(words)
	r.mu.Unlock()
	return nil
}

// handleRoomMessage parses a live (b) or history (i) message record. Live
// messages wait in the pending map for their permanent id; history
// messages carry the id directly in the sixth field.
func (r *Room) handleRoomMessage(args []string, live bool) error {
	if len(args) < 8 {
		return errs.New(errs.ErrMalformedRecord)
	}

	postTime, _ := strconv.ParseFloat(args[0], 64)
	regName, tmpName := args[1], args[2]
	uid, _ := strconv.ParseInt(args[3], 10, 64)
	moderationID := args[4]
	index := args[5]
	ip := args[6]
	payload := strings.Join(args[8:], ":")

	var kind user.Kind
	var name string
	switch {
	case regName == "" && tmpName == "":
		kind = user.KindAnonymous
	case regName == "":
		kind = user.KindTemporary
		name = tmpName
	default:
		kind = user.KindRegistered
		name = regName
	}

	author := user.User{
		UID:          uid,
		DisplayName:  name,
		Kind:         kind,
		IP:           ip,
		ModerationID: moderationID,
		AnonSeed:     markup.AnonSeed(payload),
	}

	msg := &Message{
		PostTime: postTime,
		Raw:      payload,
		Text:     markup.PlainText(payload),
		Author:   author,
	}

	if live {
		msg.Origin = OriginLive
		msg.SequenceIndex = index
		r.mu.Lock()
		r.pending[index] = msg
		r.mu.Unlock()
		return nil
	}

	msg.Origin = OriginHistory
	msg.ID = index
	r.addHistory(msg)
	return nil
}

// handleIDConfirmation moves a pending live message into history under its
// permanent id. A confirmation without a pending entry is ignored.
func (r *Room) handleIDConfirmation(args []string) error {
	index := arg(args, 0)
	permanentID := arg(args, 1)

	r.mu.Lock()
	msg := r.pending[index]
	delete(r.pending, index)
	r.mu.Unlock()

	if msg == nil {
		return nil
	}
	msg.ID = permanentID
	r.addHistory(msg)
	return nil
}

// addHistory stores the message and, when it ends up live and survives the
// ignore predicates, queues exactly one message event.
func (r *Room) addHistory(msg *Message) {
	stored := r.history.Add(msg, r.isReconnectEpoch())
	if !stored || msg.Origin != OriginLive {
		return
	}

	r.mu.Lock()
	preds := make([]func(*Message) bool, 0, len(r.ignores))
	for _, pred := range r.ignores {
		preds = append(preds, pred)
	}
	r.mu.Unlock()

	for _, pred := range preds {
		if pred(msg) {
			return
		}
	}

	r.queue.Push(&MessageEvent{Message: msg, Reply: r.roomReply()})
}

// handleBulkParticipants imports the initial roster snapshot. Only
// registered users are tracked in bulk.
func (r *Room) handleBulkParticipants(args []string) error {
	payload := strings.Join(args, ":")

	for _, record := range strings.Split(payload, ";") {
		fields := strings.Split(record, ":")
		if len(fields) < 5 {
			continue
		}

		// Anonymous and temporary participants are not imported in
		// bulk; only a registered name marks a tracked entry.
		regName := fields[3]
		if regName == noName || regName == "" {
			continue
		}

		sessionID, _ := strconv.Atoi(fields[0])
		loginTime, _ := strconv.ParseFloat(fields[1], 64)
		uid, _ := strconv.ParseInt(fields[2], 10, 64)

		r.roster.Add(user.User{
			UID:         uid,
			DisplayName: regName,
			Kind:        user.KindRegistered,
			SessionID:   sessionID,
			LoginTime:   loginTime,
		})
	}
	return nil
}

// handleParticipant applies one roster delta: 0 leave, 1 join, 2 rename.
// Only registered-kind joins and leaves produce queue events; renames
// always do.
func (r *Room) handleParticipant(args []string) error {
	if len(args) < 7 {
		return errs.New(errs.ErrMalformedRecord)
	}

	event := args[0]
	sessionID, _ := strconv.Atoi(args[1])
	uid, _ := strconv.ParseInt(args[2], 10, 64)
	regName, tmpName := args[3], args[4]
	ip := args[5]
	loginTime, _ := strconv.ParseFloat(args[6], 64)

	var kind user.Kind
	var name string
	switch {
	case regName == noName && tmpName == noName:
		kind = user.KindAnonymous
	case regName == noName:
		kind = user.KindTemporary
		name = tmpName
	default:
		kind = user.KindRegistered
		name = regName
	}

	u := user.User{
		UID:         uid,
		DisplayName: name,
		Kind:        kind,
		SessionID:   sessionID,
		LoginTime:   loginTime,
		IP:          ip,
	}

	switch event {
	case "0":
		removed, ok := r.roster.Remove(sessionID)
		if ok && removed.Kind == user.KindRegistered {
			r.queue.Push(&LogoutEvent{Username: u.Key(), User: &u, Reply: r.roomReply()})
		}
	case "1":
		r.roster.Add(u)
		if u.Kind == user.KindRegistered {
			r.queue.Push(&LoginEvent{Username: u.Key(), User: &u, Reply: r.roomReply()})
		}
	case "2":
		old, ok := r.roster.Replace(sessionID, u)
		if ok {
			r.queue.Push(&NickChangeEvent{Old: old, New: u, Reply: r.roomReply()})
		}
	}
	return nil
}
