package shadow

import (
	"fmt"
	"sync"

	"github.com/pthm/shadow/lib/encoding"
)

// Updater is notified when a Store's state is replaced. *Element
// implements it.
type Updater interface {
	Update()
}

// Store is a shared state holder with ordered, synchronous broadcast.
// Elements in a document created WithStore subscribe themselves when
// bound and unsubscribe when unmounted.
type Store struct {
	mu    sync.Mutex
	state any
	subs  []Updater
}

// NewStore creates a store holding initial.
func NewStore(initial any) *Store {
	return &Store{state: initial}
}

// State returns the current state.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState replaces the state and calls Update on every subscriber in
// subscription order before returning. Subscribers are called without the
// store's lock held and may read or write the store.
func (s *Store) SetState(v any) {
	s.mu.Lock()
	s.state = v
	subs := append([]Updater(nil), s.subs...)
	s.mu.Unlock()

	for _, u := range subs {
		u.Update()
	}
}

// Subscribe adds u to the subscriber list. Subscribing twice has no
// effect. The returned function unsubscribes u.
func (s *Store) Subscribe(u Updater) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(u) < 0 {
		s.subs = append(s.subs, u)
	}
	return func() { s.Unsubscribe(u) }
}

// Unsubscribe removes u. Unknown subscribers are ignored.
func (s *Store) Unsubscribe(u Updater) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(u); i >= 0 {
		s.subs = append(s.subs[:i], s.subs[i+1:]...)
	}
}

// Len returns the number of subscribers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store) indexOf(u Updater) int {
	for i, sub := range s.subs {
		if sub == u {
			return i
		}
	}
	return -1
}

// Snapshot encodes the state as a signed token, or an encrypted one when
// sensitive is set. Only mapping states can be snapshotted.
func (s *Store) Snapshot(enc *encoding.Encoder, sensitive bool) (string, error) {
	st, ok := s.State().(State)
	if !ok {
		return "", fmt.Errorf("%w: state is %T, not a mapping", ErrSnapshotInvalid, s.State())
	}
	token, err := enc.Encode(st, sensitive)
	if err != nil {
		return "", wrapEncodingError(err)
	}
	return token, nil
}

// Restore decodes a token produced by Snapshot and replaces the state
// with it, notifying subscribers.
func (s *Store) Restore(enc *encoding.Encoder, token string, sensitive bool) error {
	st, err := enc.Decode(token, sensitive)
	if err != nil {
		return wrapEncodingError(err)
	}
	s.SetState(State(st))
	return nil
}
