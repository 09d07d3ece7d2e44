package cart

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/parkpass/internal/models"
)

// Session is the unit of checkout state: one browser's cart, contact,
// identity and coupon state. It is owned by a single checkout flow; the
// embedded mutex serializes handler access, there is no cross-session
// sharing. Nothing here is persisted — discarding the session discards
// the flow.
type Session struct {
	sync.Mutex

	ID        uuid.UUID
	CreatedAt time.Time
	LastSeen  time.Time

	Items   []models.CartLineItem
	Contact models.ContactInfo
	Otp     models.OtpState
	Coupon  models.CouponState
	Stage   models.Stage

	// Upstream credentials established by the identity gate. Token is
	// set in exactly one place (SetCredentials) and cleared on reset or
	// upstream 401.
	Token string
	User  json.RawMessage
}

// SetCredentials installs the upstream bearer token and user profile.
// This is the sole point where a guest flow becomes authenticated.
func (s *Session) SetCredentials(token string, user json.RawMessage) {
	s.Token = token
	s.User = user
}

// Authenticated reports whether an upstream session token is present.
func (s *Session) Authenticated() bool {
	return s.Token != ""
}

// Reset discards all flow state but keeps the session alive.
func (s *Session) Reset() {
	s.Items = nil
	s.Contact = models.ContactInfo{}
	s.Otp = models.OtpState{Status: models.StatusIdle}
	s.Coupon = models.CouponState{Status: models.StatusIdle}
	s.Stage = models.StageCartBuilding
	s.Token = ""
	s.User = nil
}

// Registry holds live checkout sessions keyed by ID. Sessions expire
// after ttl of inactivity and are swept lazily on create.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
}

// NewRegistry constructs an empty session registry.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
	}
}

// Create mints a new session.
func (r *Registry) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New(),
		CreatedAt: now,
		LastSeen:  now,
		Otp:       models.OtpState{Status: models.StatusIdle},
		Coupon:    models.CouponState{Status: models.StatusIdle},
		Stage:     models.StageCartBuilding,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeExpiredLocked(now)
	r.sessions[s.ID] = s
	return s
}

// Get returns the session for the given ID, refreshing its activity
// timestamp. Expired sessions are treated as absent.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := time.Now()
	s.Lock()
	expired := now.Sub(s.LastSeen) > r.ttl
	if !expired {
		s.LastSeen = now
	}
	s.Unlock()

	if expired {
		r.Delete(id)
		return nil, false
	}
	return s, true
}

// Delete removes a session from the registry.
func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) purgeExpiredLocked(now time.Time) {
	for id, s := range r.sessions {
		s.Lock()
		expired := now.Sub(s.LastSeen) > r.ttl
		s.Unlock()
		if expired {
			delete(r.sessions, id)
		}
	}
}
