// Package notify defines the user-facing notification sink the sync core
// reports through. The surrounding UI layer injects the Func; the core never
// renders anything itself.
package notify

import "sync"

// Kind classifies a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Func surfaces one user-visible notification.
type Func func(kind Kind, message string)

// Discard is a Func that drops everything.
func Discard(Kind, string) {}

// Notification is one recorded sink call.
type Notification struct {
	Kind    Kind
	Message string
}

// Recorder is a Func implementation that captures notifications, used in
// tests and by the websocket stream handler.
type Recorder struct {
	mu      sync.Mutex
	entries []Notification
}

// Notify records the notification. Pass method value as the sink Func.
func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Notification{Kind: kind, Message: message})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset clears recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
