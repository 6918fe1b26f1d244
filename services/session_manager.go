package services

import (
	"context"
	"log"
	"sync"
	"time"

	"habitsAPI/internal/docstore"
	"habitsAPI/internal/session"
)

type managedSession struct {
	sess     *session.Session
	refs     int
	lastSeen time.Time
}

// SessionManager keeps one live session per signed-in user. Websocket
// connections hold a reference; plain requests only touch lastSeen.
type SessionManager struct {
	store docstore.Store
	opts  session.Options
	ctx   context.Context

	mu       sync.Mutex
	sessions map[string]*managedSession
	closed   bool
}

func NewSessionManager(ctx context.Context, store docstore.Store, opts session.Options) *SessionManager {
	return &SessionManager{
		store:    store,
		opts:     opts,
		ctx:      ctx,
		sessions: make(map[string]*managedSession),
	}
}

func (m *SessionManager) lookup(uid string, ref bool) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}
	ms, exists := m.sessions[uid]
	if !exists {
		ms = &managedSession{sess: session.New(m.store, uid, m.opts)}
		m.sessions[uid] = ms
		ms.sess.Start(m.ctx)
	}
	ms.lastSeen = time.Now()
	if ref {
		ms.refs++
	}
	return ms.sess, nil
}

// Get returns the user's session, starting it on first use, once its
// write-path caches have loaded.
func (m *SessionManager) Get(ctx context.Context, uid string) (*session.Session, error) {
	sess, err := m.lookup(uid, false)
	if err != nil {
		return nil, err
	}
	if err := sess.WaitReady(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// Acquire is Get plus a reference that keeps the session alive until Release.
func (m *SessionManager) Acquire(ctx context.Context, uid string) (*session.Session, error) {
	sess, err := m.lookup(uid, true)
	if err != nil {
		return nil, err
	}
	if err := sess.WaitReady(ctx); err != nil {
		m.Release(sess)
		return nil, err
	}
	return sess, nil
}

// Release drops a reference taken by Acquire. A session that was ended and
// replaced in the meantime is left alone.
func (m *SessionManager) Release(sess *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms, ok := m.sessions[sess.UID]; ok && ms.sess == sess && ms.refs > 0 {
		ms.refs--
		ms.lastSeen = time.Now()
	}
}

// End closes the user's session on sign-out, regardless of references.
func (m *SessionManager) End(uid string) bool {
	m.mu.Lock()
	ms, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if !ok {
		return false
	}
	ms.sess.Close()
	return true
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes unreferenced sessions not used within ttl.
func (m *SessionManager) EvictIdle(ttl time.Duration) int {
	m.mu.Lock()
	var idle []*session.Session
	for uid, ms := range m.sessions {
		if ms.refs == 0 && time.Since(ms.lastSeen) > ttl {
			idle = append(idle, ms.sess)
			delete(m.sessions, uid)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// CleanupSessions evicts idle sessions every minute until ctx is done.
func (m *SessionManager) CleanupSessions(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(ttl); n > 0 {
				log.Printf("SessionManager: evicted %d idle sessions", n)
			}
		}
	}
}

// Close ends every session.
func (m *SessionManager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for _, ms := range sessions {
		ms.sess.Close()
	}
}
