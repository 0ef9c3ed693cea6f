package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"telemt-admin/internal/domain"
)

func TestWaitingSet(t *testing.T) {
	w := NewWaitingSet()
	assert.False(t, w.IsWaiting(1))

	w.Mark(1)
	w.Mark(1)
	assert.True(t, w.IsWaiting(1))
	assert.Equal(t, 1, w.Len())

	w.Unmark(1)
	w.Unmark(2)
	assert.False(t, w.IsWaiting(1))
}

func TestWaitingSet_Concurrent(t *testing.T) {
	w := NewWaitingSet()
	var wg sync.WaitGroup
	for i := int64(0); i < 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			w.Mark(id)
			_ = w.IsWaiting(id)
			if id%2 == 0 {
				w.Unmark(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, w.Len())
}

func TestKeepsWaiting(t *testing.T) {
	assert.True(t, KeepsWaiting(domain.ErrTokenNotFound))
	assert.True(t, KeepsWaiting(fmt.Errorf("wrapped: %w", domain.ErrTokenNotFound)))
	for _, err := range []error{domain.ErrTokenRevoked, domain.ErrTokenExpired, domain.ErrTokenUsageLimit, nil} {
		assert.False(t, KeepsWaiting(err))
	}
}
