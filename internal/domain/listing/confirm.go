package listing

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pending is a state-changing action waiting for its second confirmation.
type Pending struct {
	Token     string    `json:"confirmationToken"`
	Action    string    `json:"action"`
	View      string    `json:"view"`
	Scope     string    `json:"scope,omitempty"`
	Param     string    `json:"param,omitempty"`
	IDs       []string  `json:"ids"`
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expiresAt"`
	session   string
}

type Confirmations struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]Pending
}

func NewConfirmations(ttl time.Duration) *Confirmations {
	return &Confirmations{ttl: ttl, now: time.Now, items: map[string]Pending{}}
}

// Request records the action and the ids it will touch. Nothing is changed
// until the token is confirmed by the same session.
func (c *Confirmations) Request(session, action, view, scope string, ids []string) Pending {
	return c.RequestParam(session, action, view, scope, "", ids)
}

// RequestParam is Request for actions that carry one argument, such as the
// target status of a bulk status change.
func (c *Confirmations) RequestParam(session, action, view, scope, param string, ids []string) Pending {
	p := Pending{
		Token:     uuid.NewString(),
		Action:    action,
		View:      view,
		Scope:     scope,
		Param:     param,
		IDs:       append([]string(nil), ids...),
		Count:     len(ids),
		ExpiresAt: c.now().Add(c.ttl),
		session:   session,
	}
	c.mu.Lock()
	c.items[p.Token] = p
	c.mu.Unlock()
	return p
}

// Take removes and returns the pending action. A token is usable once.
func (c *Confirmations) Take(session, token string) (Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[token]
	if !ok || p.session != session {
		return Pending{}, ErrConfirmationNotFound
	}
	delete(c.items, token)
	if c.now().After(p.ExpiresAt) {
		return Pending{}, ErrConfirmationNotFound
	}
	return p, nil
}

func (c *Confirmations) Cancel(session, token string) error {
	_, err := c.Take(session, token)
	return err
}

func (c *Confirmations) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for token, p := range c.items {
		if now.After(p.ExpiresAt) {
			delete(c.items, token)
			removed++
		}
	}
	return removed
}

// DropSession discards every pending action of a session.
func (c *Confirmations) DropSession(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, p := range c.items {
		if p.session == session {
			delete(c.items, token)
		}
	}
}
