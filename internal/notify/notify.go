// Package notify provides the per-event observer set used to broadcast
// textual change notifications.
//
// Delivery is synchronous and happens on the caller's goroutine. The set is
// snapshotted under its lock and observers run outside of it, so an observer
// may add or remove observers (or read the event) without deadlocking.
package notify

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Observer receives change messages from a single event.
type Observer interface {
	Notify(message string)
}

// ObserverFunc adapts a plain function to the Observer interface.
// Functions are not comparable, so an ObserverFunc cannot be detached with
// Set.Remove; use a pointer-receiver type when removal is needed.
type ObserverFunc func(message string)

// Notify calls f(message).
func (f ObserverFunc) Notify(message string) {
	f(message)
}

// DeliveryError reports an observer that panicked while handling a message.
type DeliveryError struct {
	Message string
	Cause   any
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("observer failed on %q: %v", e.Message, e.Cause)
}

// Set is an ordered, concurrency-safe list of observers.
// The zero value is ready to use.
type Set struct {
	mu        sync.RWMutex
	observers []Observer
	onFailure func(error)
}

// Add attaches an observer. Adding the same observer twice delivers twice.
func (s *Set) Add(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Remove detaches the first registration of o. Unknown observers are ignored.
func (s *Set) Remove(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.observers {
		if sameObserver(cur, o) {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached observers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// SetFailureHandler installs the callback that receives every DeliveryError.
// Without one, failures are logged as warnings on the standard logrus logger.
func (s *Set) SetFailureHandler(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailure = fn
}

// Broadcast delivers message to every attached observer in registration
// order. A panicking observer does not stop delivery to the rest; its
// failure is reported to the failure handler and joined into the result.
func (s *Set) Broadcast(message string) error {
	s.mu.RLock()
	snapshot := make([]Observer, len(s.observers))
	copy(snapshot, s.observers)
	onFailure := s.onFailure
	s.mu.RUnlock()

	var errs []error
	for _, o := range snapshot {
		if err := deliver(o, message); err != nil {
			if onFailure != nil {
				onFailure(err)
			} else {
				logrus.WithError(err).Warn("observer delivery failed")
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func deliver(o Observer, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{Message: message, Cause: r}
		}
	}()
	o.Notify(message)
	return nil
}

// sameObserver compares observers without panicking on uncomparable
// dynamic types such as ObserverFunc.
func sameObserver(a, b Observer) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
