package service

import (
	"errors"
	"sync"

	"telemt-admin/internal/domain"
)

// WaitingSet remembers identities whose next plain message is an invite token.
type WaitingSet struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewWaitingSet() *WaitingSet {
	return &WaitingSet{ids: make(map[int64]struct{})}
}

func (w *WaitingSet) Mark(id int64) {
	w.mu.Lock()
	w.ids[id] = struct{}{}
	w.mu.Unlock()
}

func (w *WaitingSet) Unmark(id int64) {
	w.mu.Lock()
	delete(w.ids, id)
	w.mu.Unlock()
}

func (w *WaitingSet) IsWaiting(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.ids[id]
	return ok
}

func (w *WaitingSet) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ids)
}

// KeepsWaiting reports whether a failed redemption should leave the identity
// waiting. Only an unknown token does, so a typo can be retried.
func KeepsWaiting(err error) bool {
	return errors.Is(err, domain.ErrTokenNotFound)
}
