// Package settings carries the filter selection from its host to the render
// loop.
//
// The host exposes two narrow channels: Subscriber pushes every change and
// Requester answers on-demand reads. Neither is assumed to be synchronous.
// Store is the in-memory implementation used by the command and tests.
package settings

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultFilter is the selection before anything has been stored.
const DefaultFilter = "none"

// Subscriber delivers filter selections as they change.
type Subscriber interface {
	// Subscribe returns a channel receiving the latest selection after
	// each change. It is closed when ctx is done.
	Subscribe(ctx context.Context) <-chan string
}

// Requester answers on-demand reads of the current selection.
type Requester interface {
	Current(ctx context.Context) (string, error)
}

// Store keeps the current selection and fans changes out to subscribers.
// Slow subscribers only ever see the latest value.
type Store struct {
	mu    sync.Mutex
	value string
	subs  map[chan string]struct{}
}

// NewStore creates a store holding initial, or DefaultFilter if empty.
func NewStore(initial string) *Store {
	if initial == "" {
		initial = DefaultFilter
	}
	return &Store{value: initial, subs: make(map[chan string]struct{})}
}

// Current returns the stored selection.
func (s *Store) Current(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

// Set stores value and notifies subscribers without blocking.
func (s *Store) Set(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == s.value {
		return
	}
	s.value = value

	logrus.WithFields(logrus.Fields{
		"function":    "Store.Set",
		"filter":      value,
		"subscribers": len(s.subs),
	}).Info("Filter selection changed")

	for ch := range s.subs {
		offerLatest(ch, value)
	}
}

// Subscribe registers a subscriber until ctx is done.
func (s *Store) Subscribe(ctx context.Context) <-chan string {
	ch := make(chan string, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// offerLatest replaces any undelivered value in ch with v.
func offerLatest(ch chan string, v string) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
