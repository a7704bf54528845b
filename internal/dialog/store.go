package dialog

import (
	"context"
	"sync"

	"evdialog/internal/remote"
)

// Store keeps the open dialogs of a process by session id. A dialog drops
// out of the store when it closes.
type Store struct {
	client remote.Client

	mu      sync.RWMutex
	dialogs map[string]*Dialog
}

func NewStore(client remote.Client) *Store {
	return &Store{client: client, dialogs: make(map[string]*Dialog)}
}

// Open opens a dialog and registers it. Any OnClose callback in p still
// fires, after the dialog has been removed.
func (s *Store) Open(ctx context.Context, p Params) (*Dialog, error) {
	var id string
	onClose := p.Callbacks.OnClose
	p.Callbacks.OnClose = func() {
		s.remove(id)
		if onClose != nil {
			onClose()
		}
	}

	d, err := Open(ctx, s.client, p)
	if err != nil {
		return nil, err
	}
	id = d.ID()

	s.mu.Lock()
	s.dialogs[id] = d
	s.mu.Unlock()
	return d, nil
}

func (s *Store) Get(id string) (*Dialog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dialogs[id]
	return d, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dialogs)
}

// CloseAll closes every open dialog.
func (s *Store) CloseAll() {
	s.mu.RLock()
	open := make([]*Dialog, 0, len(s.dialogs))
	for _, d := range s.dialogs {
		open = append(open, d)
	}
	s.mu.RUnlock()

	for _, d := range open {
		d.Close()
	}
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.dialogs, id)
	s.mu.Unlock()
}
