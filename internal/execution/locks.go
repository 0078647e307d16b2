package execution

import "sync"

// symbolLocks serializes executions per symbol. Two opportunities for the
// same symbol never run concurrently; different symbols may.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *symbolLocks) get(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}
