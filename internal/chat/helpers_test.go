package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"eduhub-chat/internal/auth"
	"eduhub-chat/internal/models"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due callbacks on the caller's
// goroutine, outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	full   bool
}

func (r *recorder) Send(ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fakeStore struct {
	mu       sync.Mutex
	messages []models.Message
	seen     []string
	err      error
}

func (s *fakeStore) CreateMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *fakeStore) MarkSeen(_ context.Context, id, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, id+":"+username)
	return nil, s.err
}

func (s *fakeStore) saved() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

type stubVerifier map[string]auth.Claims

func (v stubVerifier) Verify(token string) (*auth.Claims, error) {
	c, ok := v[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &c, nil
}

var testUsers = stubVerifier{
	"tok-alice": {UserID: "u-alice", Username: "alice"},
	"tok-bob":   {UserID: "u-bob", Username: "bob"},
	"tok-carol": {UserID: "u-carol", Username: "carol"},
}

type harness struct {
	coord *Coordinator
	clock *fakeClock
	store *fakeStore
}

func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()
	clock := newFakeClock()
	store := &fakeStore{}
	opts := Options{
		Resolver: NewIdentityResolver(testUsers, clock, zap.NewNop()),
		Store:    store,
		Clock:    clock,
		Logger:   zap.NewNop(),
	}
	for _, fn := range tweak {
		fn(&opts)
	}

	coord := NewCoordinator(opts)
	coord.detach = func(f func()) { f() }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{coord: coord, clock: clock, store: store}
}

func (h *harness) connect(t *testing.T, token string) (Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s, err := h.coord.Connect(rec, token)
	require.NoError(t, err)
	rec.reset()
	return s, rec
}

var errNoRow = errors.New("no such message")

// slowStore acts like Postgres for ordering: a seen update for a row that
// was not inserted yet fails.
type slowStore struct {
	insertDelay time.Duration

	mu     sync.Mutex
	seenBy map[string][]string
	misses int
}

func newSlowStore(delay time.Duration) *slowStore {
	return &slowStore{insertDelay: delay, seenBy: make(map[string][]string)}
}

func (s *slowStore) CreateMessage(_ context.Context, msg models.Message) error {
	time.Sleep(s.insertDelay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seenBy[msg.ID]; !ok {
		s.seenBy[msg.ID] = []string{}
	}
	return nil
}

func (s *slowStore) MarkSeen(_ context.Context, id, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen, ok := s.seenBy[id]
	if !ok {
		s.misses++
		return nil, errNoRow
	}
	s.seenBy[id] = append(seen, username)
	return s.seenBy[id], nil
}

func (s *slowStore) seen(id string) ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seenBy[id]...), s.misses
}
