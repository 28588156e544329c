package project

import "sync"

// Store is the shared state container. Dispatch is safe for concurrent use;
// subscribers are notified one at a time in dispatch order and must not call
// Dispatch from inside the callback.
type Store struct {
	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]func(State)

	notifyMu sync.Mutex
}

func NewStore(initial State) *Store {
	if initial.Assets == nil {
		initial.Assets = map[string]SegmentAssets{}
	}
	return &Store{state: initial, subs: map[int]func(State){}}
}

// Dispatch applies an action and notifies subscribers with the new snapshot.
func (s *Store) Dispatch(action Action) State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.state = Reduce(s.state, action)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Update is shorthand for dispatching an UpdateAsset.
func (s *Store) Update(segmentID string, update AssetUpdate) State {
	return s.Dispatch(UpdateAsset{SegmentID: segmentID, Update: update})
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for future snapshots and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
