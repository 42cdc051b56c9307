package chat

// presence is the table of sessions that announced themselves with "join".
type presence struct {
	sessions map[string]Session
	order    []string
}

func newPresence() *presence {
	return &presence{sessions: make(map[string]Session)}
}

// register reports whether the connection was not registered before.
func (p *presence) register(connID string, s Session) bool {
	if _, ok := p.sessions[connID]; ok {
		p.sessions[connID] = s
		return false
	}
	p.sessions[connID] = s
	p.order = append(p.order, connID)
	return true
}

func (p *presence) unregister(connID string) (Session, bool) {
	s, ok := p.sessions[connID]
	if !ok {
		return Session{}, false
	}
	delete(p.sessions, connID)
	for i, id := range p.order {
		if id == connID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return s, true
}

// list returns display names in registration order. The slice is fresh on
// every call so it can be handed to a Conn.
func (p *presence) list() []string {
	names := make([]string, 0, len(p.order))
	for _, id := range p.order {
		names = append(names, p.sessions[id].Username)
	}
	return names
}

func (p *presence) len() int {
	return len(p.order)
}
