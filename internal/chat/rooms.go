package chat

import "sort"

// roomTracker keeps connection <-> room membership. Rooms exist only while
// they have members.
type roomTracker struct {
	byConn map[string]map[string]struct{}
	byRoom map[string]map[string]struct{}
}

func newRoomTracker() *roomTracker {
	return &roomTracker{
		byConn: make(map[string]map[string]struct{}),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// join reports whether the membership is new.
func (t *roomTracker) join(connID, roomID string) bool {
	if _, ok := t.byConn[connID][roomID]; ok {
		return false
	}
	if t.byConn[connID] == nil {
		t.byConn[connID] = make(map[string]struct{})
	}
	if t.byRoom[roomID] == nil {
		t.byRoom[roomID] = make(map[string]struct{})
	}
	t.byConn[connID][roomID] = struct{}{}
	t.byRoom[roomID][connID] = struct{}{}
	return true
}

// leave reports whether the connection was a member.
func (t *roomTracker) leave(connID, roomID string) bool {
	rooms, ok := t.byConn[connID]
	if !ok {
		return false
	}
	if _, ok := rooms[roomID]; !ok {
		return false
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(t.byConn, connID)
	}
	if members, ok := t.byRoom[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(t.byRoom, roomID)
		}
	}
	return true
}

// leaveAll drops every membership of the connection and returns the rooms
// it was in, sorted.
func (t *roomTracker) leaveAll(connID string) []string {
	rooms := t.roomsOf(connID)
	for _, roomID := range rooms {
		t.leave(connID, roomID)
	}
	return rooms
}

func (t *roomTracker) roomsOf(connID string) []string {
	rooms := make([]string, 0, len(t.byConn[connID]))
	for roomID := range t.byConn[connID] {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

func (t *roomTracker) members(roomID string) []string {
	conns := make([]string, 0, len(t.byRoom[roomID]))
	for connID := range t.byRoom[roomID] {
		conns = append(conns, connID)
	}
	sort.Strings(conns)
	return conns
}

func (t *roomTracker) isMember(connID, roomID string) bool {
	_, ok := t.byConn[connID][roomID]
	return ok
}

func (t *roomTracker) roomCount() int {
	return len(t.byRoom)
}
