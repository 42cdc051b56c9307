package chat

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"eduhub-chat/internal/auth"
)

// TokenVerifier validates a signed credential.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// IdentityResolver turns a connection credential into an Identity. Bad or
// missing credentials are downgraded to a guest identity, never rejected.
//
// It is not safe for concurrent use; the coordinator only calls it from its
// own loop.
type IdentityResolver struct {
	verifier TokenVerifier
	clock    Clock
	log      *zap.Logger
	intn     func(n int) int
	lastMS   int64
}

// NewIdentityResolver constructs a resolver. A nil verifier makes every
// connection a guest.
func NewIdentityResolver(verifier TokenVerifier, clock Clock, log *zap.Logger) *IdentityResolver {
	if clock == nil {
		clock = systemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityResolver{verifier: verifier, clock: clock, log: log, intn: rand.Intn}
}

// Resolve never fails.
func (r *IdentityResolver) Resolve(token string) Identity {
	if token != "" && r.verifier != nil {
		claims, err := r.verifier.Verify(token)
		if err == nil {
			return Identity{UserID: claims.UserID, Username: claims.Username}
		}
		r.log.Debug("credential rejected, connecting as guest", zap.Error(err))
	}
	return r.guest()
}

func (r *IdentityResolver) guest() Identity {
	ms := r.clock.Now().UnixMilli()
	if ms <= r.lastMS {
		ms = r.lastMS + 1
	}
	r.lastMS = ms
	return Identity{
		UserID:   fmt.Sprintf("guest_%d", ms),
		Username: fmt.Sprintf("Guest_%d", r.intn(10000)),
		IsGuest:  true,
	}
}
