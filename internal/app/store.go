package app

import "sync"

// Store owns the State and applies messages to it one at a time. Commands
// returned by Update run on their own goroutines and feed their result back
// through Dispatch.
type Store struct {
	workflow *Workflow

	mu          sync.Mutex
	state       State
	subscribers []func(State)

	// notifyMu keeps subscribers from seeing states out of order.
	notifyMu sync.Mutex

	inflight sync.WaitGroup
}

func NewStore(workflow *Workflow, initial State) *Store {
	return &Store{
		workflow: workflow,
		state:    initial,
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive every new state. fn runs on the
// dispatching goroutine and must not block.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) Dispatch(msg Msg) {
	s.mu.Lock()
	next, cmd := s.workflow.Update(s.state, msg)
	s.state = next

	// Added before the parent command's Done so Wait cannot return
	// between two steps of a chain.
	if cmd != nil {
		s.inflight.Add(1)
	}
	s.mu.Unlock()

	s.notify()

	if cmd == nil {
		return
	}

	go func() {
		defer s.inflight.Done()
		if result := cmd(); result != nil {
			s.Dispatch(result)
		}
	}()
}

func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	current := s.state
	subscribers := make([]func(State), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(current)
	}
}

// Wait blocks until every command started so far, and every command they
// led to, has finished.
func (s *Store) Wait() {
	s.inflight.Wait()
}
