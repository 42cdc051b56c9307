package chat

import "go.uber.org/zap"

func (c *Coordinator) unicast(connID string, ev Event) {
	if a, ok := c.conns[connID]; ok {
		c.send(a, ev)
	}
}

// broadcastAll delivers to every attached connection except one.
func (c *Coordinator) broadcastAll(ev Event, except string) {
	for connID, a := range c.conns {
		if connID == except {
			continue
		}
		c.send(a, ev)
	}
}

// broadcastRoom delivers to the current members of roomID.
func (c *Coordinator) broadcastRoom(roomID string, ev Event, except string) {
	for _, connID := range c.rooms.members(roomID) {
		if connID == except {
			continue
		}
		if a, ok := c.conns[connID]; ok {
			c.send(a, ev)
		}
	}
}

// broadcastScope picks the audience of a scope: everyone for general,
// members otherwise.
func (c *Coordinator) broadcastScope(scope string, ev Event, except string) {
	if scope == GeneralRoom {
		c.broadcastAll(ev, except)
		return
	}
	c.broadcastRoom(scope, ev, except)
}

func (c *Coordinator) broadcastTyping(scope string) {
	c.broadcastScope(scope, Event{Type: EventTyping, Data: TypingPayload{
		Users:  c.typing.users(scope),
		RoomID: scope,
	}}, "")
}

// send never blocks; a slow or gone peer just misses the frame.
func (c *Coordinator) send(a *attachment, ev Event) {
	if !a.conn.Send(ev) {
		c.log.Debug("dropped frame for slow connection",
			zap.String("conn_id", a.session.ConnectionID),
			zap.String("event", string(ev.Type)))
	}
}

func scopeLabel(scope string) string {
	if scope == GeneralRoom {
		return GeneralRoom
	}
	return "room"
}
