package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborbank/demo/internal/backend"
	"github.com/harborbank/demo/internal/dataaccess"
	"github.com/harborbank/demo/internal/feed"
	"github.com/harborbank/demo/internal/logger"
	"github.com/harborbank/demo/internal/notify"
	"github.com/harborbank/demo/internal/session"
	"github.com/harborbank/demo/internal/txstate"
)

// SessionSync is everything one session owns: its view store, its feed
// subscription, and the watchers streaming notifications to that user's
// clients.
type SessionSync struct {
	Session session.Session
	Syncer  *txstate.Syncer

	mu       sync.Mutex
	watchers map[chan notify.Notification]struct{}
}

// Notify is the notification sink injected into the session's store and
// data access. It fans out to every connected watcher; a watcher that is
// not keeping up misses the notification rather than blocking the store.
func (s *SessionSync) Notify(kind notify.Kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- notify.Notification{Kind: kind, Message: message}:
		default:
		}
	}
}

// Watch registers a notification watcher and returns it with its cancel
// function.
func (s *SessionSync) Watch() (<-chan notify.Notification, func()) {
	ch := make(chan notify.Notification, 16)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}
}

func (s *SessionSync) closeWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
}

// Registry creates and tears down one SessionSync per live session. It is
// driven by the session manager's start/end listeners.
type Registry struct {
	table   backend.TransactionTable
	feed    backend.ChangeFeed
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*SessionSync
}

// NewRegistry creates an empty registry over the shared table and feed.
func NewRegistry(table backend.TransactionTable, changeFeed backend.ChangeFeed, timeout time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		table:    table,
		feed:     changeFeed,
		timeout:  timeout,
		log:      log,
		sessions: make(map[string]*SessionSync),
	}
}

// Bind attaches the registry to the session manager's lifecycle signals.
func (r *Registry) Bind(mgr *session.Manager) {
	mgr.OnStart(func(sess session.Session) { r.start(sess) })
	mgr.OnEnd(func(sess session.Session) { r.end(sess.ID) })
}

// start builds the per-session sync stack: store with the session's sink,
// data access, subscriber, syncer — then seeds the view and subscribes.
func (r *Registry) start(sess session.Session) {
	log := logger.WithComponent(r.log, "sync")

	ss := &SessionSync{
		Session:  sess,
		watchers: make(map[chan notify.Notification]struct{}),
	}
	store := txstate.NewStore(ss.Notify, log)
	data := dataaccess.NewService(r.table, ss.Notify, log, r.timeout)
	sub := feed.NewSubscriber(r.feed, store, log)
	ss.Syncer = txstate.NewSyncer(sess.UserID, store, data, sub, log)

	if err := ss.Syncer.Start(context.Background()); err != nil {
		r.log.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to start session sync")
	}

	r.mu.Lock()
	r.sessions[sess.ID] = ss
	r.mu.Unlock()
}

func (r *Registry) end(sessionID string) {
	r.mu.Lock()
	ss, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	ss.Syncer.Close()
	ss.closeWatchers()
}

// ForSession returns the sync state for a live session.
func (r *Registry) ForSession(sessionID string) (*SessionSync, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ss, ok := r.sessions[sessionID]
	return ss, ok
}
