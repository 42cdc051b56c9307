package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"eduhub-chat/internal/models"
	"eduhub-chat/internal/observability"
)

var ErrCoordinatorClosed = errors.New("chat coordinator closed")

// MessageStore is the durable message collaborator. The coordinator only
// writes to it and never waits on it.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg models.Message) error
	MarkSeen(ctx context.Context, messageID, username string) ([]string, error)
}

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	Resolver         *IdentityResolver
	Store            MessageStore
	Clock            Clock
	Logger           *zap.Logger
	TypingTimeout    time.Duration
	MessageCacheSize int
	PersistTimeout   time.Duration
	// EchoToSender delivers a "message" event back to the sending connection.
	EchoToSender bool
}

// Coordinator owns all live chat state: connections, presence, room
// membership, typing indicators and recent messages. State is only touched
// from the Run loop; public methods hand work to the loop and wait for it,
// so every handler runs to completion before the next one starts.
type Coordinator struct {
	inbox   chan func()
	stopped chan struct{}

	log            *zap.Logger
	clock          Clock
	resolver       *IdentityResolver
	store          MessageStore
	persistTimeout time.Duration
	echoToSender   bool
	persist        *persistQueue
	detach         func(func())

	conns    map[string]*attachment
	presence *presence
	rooms    *roomTracker
	typing   *typingTracker
	messages *messageTable
}

// NewCoordinator builds a coordinator. Call Run before using it.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Resolver == nil {
		opts.Resolver = NewIdentityResolver(nil, opts.Clock, opts.Logger)
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}

	c := &Coordinator{
		inbox:          make(chan func()),
		stopped:        make(chan struct{}),
		log:            opts.Logger.Named("chat"),
		clock:          opts.Clock,
		resolver:       opts.Resolver,
		store:          opts.Store,
		persistTimeout: opts.PersistTimeout,
		echoToSender:   opts.EchoToSender,
		persist:        newPersistQueue(),
		conns:          make(map[string]*attachment),
		presence:       newPresence(),
		rooms:          newRoomTracker(),
		messages:       newMessageTable(opts.MessageCacheSize),
	}
	c.typing = newTypingTracker(opts.Clock, opts.TypingTimeout, c.onTypingTimer)
	c.detach = c.persist.push
	return c
}

// Run processes handlers until ctx is cancelled. It returns once pending
// store writes have been flushed.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.stopped)
	go c.persist.run()
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-ctx.Done():
			c.typing.stopAll()
			c.persist.close()
			<-c.persist.done
			c.log.Info("chat coordinator stopped", zap.Int("connections", len(c.conns)))
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Coordinator) do(fn func()) error {
	done := make(chan struct{})
	select {
	case c.inbox <- func() { defer close(done); fn() }:
	case <-c.stopped:
		return ErrCoordinatorClosed
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return ErrCoordinatorClosed
	}
}

// Connect resolves the credential, attaches conn to the global audience and
// greets it with its identity.
func (c *Coordinator) Connect(conn Conn, token string) (Session, error) {
	var s Session
	err := c.do(func() {
		s = Session{
			ConnectionID: newConnID(),
			Identity:     c.resolver.Resolve(token),
			ConnectedAt:  c.clock.Now(),
		}
		c.conns[s.ConnectionID] = &attachment{session: s, conn: conn}
		conn.Send(Event{Type: EventConnected, Data: ConnectedPayload{
			ConnectionID: s.ConnectionID,
			UserID:       s.UserID,
			Username:     s.Username,
			IsGuest:      s.IsGuest,
		}})
		c.log.Info("client connected",
			zap.String("conn_id", s.ConnectionID),
			zap.String("username", s.Username),
			zap.Bool("guest", s.IsGuest))
	})
	return s, err
}

// Disconnect tears down everything the connection owns in one step.
func (c *Coordinator) Disconnect(connID string) error {
	return c.do(func() { c.disconnect(connID) })
}

// Handle dispatches one inbound frame from connID.
func (c *Coordinator) Handle(connID string, f Frame) error {
	return c.do(func() {
		if _, ok := c.conns[connID]; !ok {
			return
		}
		if err := c.route(connID, f); err != nil {
			c.unicast(connID, Event{Type: EventError, Data: ErrorPayload{Code: ErrCodeInvalidFrame, Message: err.Error()}})
		}
	})
}

func (c *Coordinator) route(connID string, f Frame) error {
	switch f.Type {
	case EventJoin:
		c.announce(connID)
	case EventGetOnlineUsers:
		c.unicast(connID, Event{Type: EventOnlineUsers, Data: OnlineUsersPayload{Users: c.presence.list()}})
	case EventJoinRoom:
		var req RoomRequest
		if err := f.decode(&req); err != nil {
			return err
		}
		c.joinRoom(connID, req.RoomID)
	case EventLeaveRoom:
		var req RoomRequest
		if err := f.decode(&req); err != nil {
			return err
		}
		c.leaveRoom(connID, req.RoomID)
	case EventSendMessage:
		var req SendMessageRequest
		if err := f.decode(&req); err != nil {
			return err
		}
		c.sendMessage(connID, req)
	case EventTyping:
		var req TypingRequest
		if err := f.decode(&req); err != nil {
			return err
		}
		c.setTyping(connID, req)
	case EventMessageSeen:
		var req SeenRequest
		if err := f.decode(&req); err != nil {
			return err
		}
		c.markSeen(connID, req)
	default:
		c.unicast(connID, Event{Type: EventError, Data: ErrorPayload{Code: ErrCodeUnknownEvent, Message: "unknown event " + string(f.Type)}})
	}
	return nil
}

// Announce registers the connection in the presence list.
func (c *Coordinator) Announce(connID string) error {
	return c.do(func() { c.announce(connID) })
}

// JoinRoom adds the connection to a room.
func (c *Coordinator) JoinRoom(connID, roomID string) error {
	return c.do(func() { c.joinRoom(connID, roomID) })
}

// LeaveRoom removes the connection from a room.
func (c *Coordinator) LeaveRoom(connID, roomID string) error {
	return c.do(func() { c.leaveRoom(connID, roomID) })
}

// SendMessage dispatches a message and returns the envelope that was
// broadcast, or nil when the request was dropped.
func (c *Coordinator) SendMessage(connID string, req SendMessageRequest) (*MessageEnvelope, error) {
	var out *MessageEnvelope
	err := c.do(func() {
		if env := c.sendMessage(connID, req); env != nil {
			snap := env.snapshot()
			out = &snap
		}
	})
	return out, err
}

// SetTyping updates the typing indicator of the connection's user.
func (c *Coordinator) SetTyping(connID string, req TypingRequest) error {
	return c.do(func() { c.setTyping(connID, req) })
}

// MarkSeen acknowledges a message on behalf of the connection's user.
func (c *Coordinator) MarkSeen(connID string, req SeenRequest) error {
	return c.do(func() { c.markSeen(connID, req) })
}

// OnlineUsers lists the display names in the presence registry.
func (c *Coordinator) OnlineUsers() ([]string, error) {
	var users []string
	err := c.do(func() { users = c.presence.list() })
	return users, err
}

// Stats is a point-in-time view of coordinator state.
type Stats struct {
	Connections int `json:"connections"`
	Online      int `json:"online"`
	Rooms       int `json:"rooms"`
	Typing      int `json:"typing"`
	Messages    int `json:"messages"`
}

// Stats reports sizes of the live tables.
func (c *Coordinator) Stats() (Stats, error) {
	var st Stats
	err := c.do(func() {
		st = Stats{
			Connections: len(c.conns),
			Online:      c.presence.len(),
			Rooms:       c.rooms.roomCount(),
			Typing:      c.typing.len(),
			Messages:    c.messages.len(),
		}
	})
	return st, err
}

func (c *Coordinator) announce(connID string) {
	a, ok := c.conns[connID]
	if !ok {
		return
	}
	c.presence.register(connID, a.session)
	observability.SetOnlineUsers(c.presence.len())
	c.broadcastAll(Event{Type: EventUserJoined, Data: PresencePayload{
		User:   a.session.Username,
		UserID: a.session.UserID,
		Users:  c.presence.list(),
	}}, "")
}

func (c *Coordinator) joinRoom(connID, roomID string) {
	a, ok := c.conns[connID]
	if !ok {
		return
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" || roomID == GeneralRoom {
		return
	}
	// a repeated join keeps state but still re-announces
	c.rooms.join(connID, roomID)
	c.broadcastRoom(roomID, Event{Type: EventUserJoinedRoom, Data: RoomPresencePayload{
		User:   a.session.Username,
		UserID: a.session.UserID,
		RoomID: roomID,
	}}, "")
	c.log.Debug("joined room", zap.String("conn_id", connID), zap.String("room", roomID))
}

func (c *Coordinator) leaveRoom(connID, roomID string) {
	a, ok := c.conns[connID]
	if !ok {
		return
	}
	roomID = strings.TrimSpace(roomID)
	if !c.rooms.leave(connID, roomID) {
		return
	}
	if c.typing.isTyping(roomID, a.session.Username) {
		c.typing.stop(typingKey{scope: roomID, username: a.session.Username})
		c.broadcastTyping(roomID)
	}
	c.broadcastRoom(roomID, Event{Type: EventUserLeftRoom, Data: RoomPresencePayload{
		User:   a.session.Username,
		UserID: a.session.UserID,
		RoomID: roomID,
	}}, "")
	c.log.Debug("left room", zap.String("conn_id", connID), zap.String("room", roomID))
}

func (c *Coordinator) sendMessage(connID string, req SendMessageRequest) *MessageEnvelope {
	a, ok := c.conns[connID]
	if !ok {
		return nil
	}
	env, ok := buildEnvelope(uuid.NewString(), a.session, req, c.clock.Now())
	if !ok {
		return nil
	}

	if c.typing.stop(typingKey{scope: env.RoomID, username: env.Sender}) {
		c.broadcastTyping(env.RoomID)
	}

	c.messages.put(env)
	except := connID
	if c.echoToSender {
		except = ""
	}
	c.broadcastScope(env.RoomID, Event{Type: EventMessage, Data: env.snapshot()}, except)
	observability.IncChatMessage(scopeLabel(env.RoomID), string(env.Kind))

	if !a.session.IsGuest {
		c.persistMessage(env.toModel())
	}
	return env
}

func (c *Coordinator) setTyping(connID string, req TypingRequest) {
	a, ok := c.conns[connID]
	if !ok {
		return
	}
	scope := scopeOf(req.RoomID)
	key := typingKey{scope: scope, username: a.session.Username}
	if req.IsTyping {
		c.typing.start(key, connID)
	} else {
		c.typing.stop(key)
	}
	c.broadcastTyping(scope)
}

func (c *Coordinator) onTypingTimer(key typingKey, gen uint64) {
	// runs on the timer goroutine; a closed coordinator has nothing to clear
	_ = c.do(func() {
		if c.typing.expire(key, gen) {
			c.broadcastTyping(key.scope)
		}
	})
}

func (c *Coordinator) markSeen(connID string, req SeenRequest) {
	a, ok := c.conns[connID]
	if !ok {
		return
	}
	env, ok := c.messages.get(strings.TrimSpace(req.MessageID))
	if !ok {
		return
	}
	if !env.markSeen(a.session.Username) {
		return
	}

	status := MessageStatusPayload{
		MessageID: env.ID,
		SeenBy:    append([]string{}, env.SeenBy...),
		RoomID:    env.RoomID,
	}
	c.broadcastScope(env.RoomID, Event{Type: EventMessageStatus, Data: status}, "")

	if env.SenderUserID != nil {
		c.persistSeen(env.ID, a.session.Username)
	}
}

func (c *Coordinator) disconnect(connID string) {
	a, ok := c.conns[connID]
	if !ok {
		return
	}
	delete(c.conns, connID)
	username := a.session.Username

	for _, scope := range c.typing.clearConn(connID) {
		c.broadcastTyping(scope)
	}
	for _, roomID := range c.rooms.leaveAll(connID) {
		c.broadcastRoom(roomID, Event{Type: EventUserLeftRoom, Data: RoomPresencePayload{
			User:   username,
			UserID: a.session.UserID,
			RoomID: roomID,
		}}, "")
	}
	if _, ok := c.presence.unregister(connID); ok {
		observability.SetOnlineUsers(c.presence.len())
		c.broadcastAll(Event{Type: EventUserLeft, Data: PresencePayload{
			User:   username,
			UserID: a.session.UserID,
			Users:  c.presence.list(),
		}}, "")
	}
	c.log.Info("client disconnected", zap.String("conn_id", connID), zap.String("username", username))
}

func (c *Coordinator) persistMessage(msg models.Message) {
	if c.store == nil {
		return
	}
	c.detach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
		defer cancel()
		ctx, span := otel.Tracer("eduhub-chat/chat").Start(ctx, "chat.persist_message")
		defer span.End()

		if err := c.store.CreateMessage(ctx, msg); err != nil {
			span.RecordError(err)
			observability.IncPersistFailure("message")
			c.log.Warn("failed to persist message",
				zap.String("message_id", msg.ID),
				zap.String("room", msg.Room),
				zap.Error(err))
		}
	})
}

func (c *Coordinator) persistSeen(messageID, username string) {
	if c.store == nil {
		return
	}
	c.detach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
		defer cancel()

		if _, err := c.store.MarkSeen(ctx, messageID, username); err != nil {
			observability.IncPersistFailure("seen")
			c.log.Warn("failed to persist seen status",
				zap.String("message_id", messageID),
				zap.String("username", username),
				zap.Error(err))
		}
	})
}
