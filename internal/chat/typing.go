package chat

import (
	"sort"
	"time"
)

// DefaultTypingTimeout is how long a typing indicator survives without a refresh.
const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	scope    string
	username string
}

type typingEntry struct {
	connID string
	gen    uint64
	timer  Timer
}

// typingTracker holds one entry per (scope, username) with its own expiry
// timer. Timer callbacks only carry the key and generation; the owner
// decides on its own loop whether the entry is still the one that was armed.
type typingTracker struct {
	clock   Clock
	timeout time.Duration
	fire    func(key typingKey, gen uint64)
	entries map[typingKey]*typingEntry
	gen     uint64
}

func newTypingTracker(clock Clock, timeout time.Duration, fire func(typingKey, uint64)) *typingTracker {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &typingTracker{
		clock:   clock,
		timeout: timeout,
		fire:    fire,
		entries: make(map[typingKey]*typingEntry),
	}
}

// start inserts or refreshes the entry and re-arms its timer.
func (t *typingTracker) start(key typingKey, connID string) {
	if e, ok := t.entries[key]; ok {
		e.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.entries[key] = &typingEntry{
		connID: connID,
		gen:    gen,
		timer:  t.clock.AfterFunc(t.timeout, func() { t.fire(key, gen) }),
	}
}

// stop removes the entry and reports whether there was one.
func (t *typingTracker) stop(key typingKey) bool {
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(t.entries, key)
	return true
}

// expire removes the entry only if it is still the generation the timer was
// armed for. A refreshed or cleared entry makes a late timer a no-op.
func (t *typingTracker) expire(key typingKey, gen uint64) bool {
	e, ok := t.entries[key]
	if !ok || e.gen != gen {
		return false
	}
	delete(t.entries, key)
	return true
}

// clearConn removes every entry last refreshed by the connection and returns
// the affected scopes, sorted.
func (t *typingTracker) clearConn(connID string) []string {
	seen := map[string]struct{}{}
	for key, e := range t.entries {
		if e.connID != connID {
			continue
		}
		e.timer.Stop()
		delete(t.entries, key)
		seen[key.scope] = struct{}{}
	}
	scopes := make([]string, 0, len(seen))
	for scope := range seen {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// users lists who is typing in a scope, sorted.
func (t *typingTracker) users(scope string) []string {
	users := []string{}
	for key := range t.entries {
		if key.scope == scope {
			users = append(users, key.username)
		}
	}
	sort.Strings(users)
	return users
}

func (t *typingTracker) isTyping(scope, username string) bool {
	_, ok := t.entries[typingKey{scope: scope, username: username}]
	return ok
}

func (t *typingTracker) stopAll() {
	for key, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, key)
	}
}

func (t *typingTracker) len() int {
	return len(t.entries)
}
