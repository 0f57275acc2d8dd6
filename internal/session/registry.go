// Package session keeps the live map sessions, one per open browser map view.
package session

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/observability"
	"github.com/mohammed-shakir/wfs-clickmap/internal/logger"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapengine"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapview"
)

type Session struct {
	ID         string
	Engine     *mapengine.Engine
	Controller *mapview.Controller
	Created    time.Time
}

// Factory builds the engine and controller for a new session id.
type Factory func(id string) *Session

// Registry holds sessions in an LRU with a sliding TTL. Sessions leaving the
// registry, by eviction, expiry or Delete, have their controller closed.
type Registry struct {
	lru     *expirable.LRU[string, *Session]
	factory Factory
	newID   func() string

	// live mirrors lru.Len; the evict callback runs under the LRU lock.
	live atomic.Int64
}

func New(size int, ttl time.Duration, factory Factory) *Registry {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	r := &Registry{factory: factory, newID: logger.NewID}
	onEvict := func(_ string, s *Session) {
		observability.SetLiveSessions(int(r.live.Add(-1)))
		if s != nil && s.Controller != nil {
			s.Controller.Close()
		}
	}
	r.lru = expirable.NewLRU[string, *Session](size, onEvict, ttl)
	return r
}

func (r *Registry) Create() *Session {
	id := r.newID()
	s := r.factory(id)
	s.ID = id
	if s.Created.IsZero() {
		s.Created = time.Now()
	}
	observability.SetLiveSessions(int(r.live.Add(1)))
	r.lru.Add(id, s)
	return s
}

// Get returns the session and restarts its TTL.
func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.lru.Get(id)
	if !ok {
		return nil, false
	}
	r.lru.Add(id, s)
	return s, true
}

func (r *Registry) Delete(id string) bool {
	return r.lru.Remove(id)
}

func (r *Registry) Len() int { return r.lru.Len() }

// Close tears down every session.
func (r *Registry) Close() {
	r.lru.Purge()
}
