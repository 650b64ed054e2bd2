package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	name     string
	log      *[]string
	messages []string
}

func (r *recorder) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	if r.log != nil {
		*r.log = append(*r.log, r.name)
	}
}

type panicker struct{}

func (panicker) Notify(string) { panic("boom") }

func TestSet_BroadcastInRegistrationOrder(t *testing.T) {
	var s Set
	var order []string
	a := &recorder{name: "a", log: &order}
	b := &recorder{name: "b", log: &order}
	c := &recorder{name: "c", log: &order}
	s.Add(a)
	s.Add(b)
	s.Add(c)

	require.NoError(t, s.Broadcast("hello"))

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{"hello"}, b.messages)
}

func TestSet_RemoveDetachesObserver(t *testing.T) {
	var s Set
	r := &recorder{}
	s.Add(r)
	s.Remove(r)

	require.NoError(t, s.Broadcast("ignored"))

	assert.Empty(t, r.messages)
	assert.Equal(t, 0, s.Len())
}

func TestSet_RemoveUnknownIsNoop(t *testing.T) {
	var s Set
	r := &recorder{}
	s.Add(r)
	s.Remove(&recorder{})
	s.Remove(ObserverFunc(func(string) {}))

	assert.Equal(t, 1, s.Len())
}

func TestSet_PanickingObserverIsIsolated(t *testing.T) {
	var s Set
	var reported []error
	s.SetFailureHandler(func(err error) { reported = append(reported, err) })

	before := &recorder{}
	after := &recorder{}
	s.Add(before)
	s.Add(panicker{})
	s.Add(after)

	err := s.Broadcast("msg")

	require.Error(t, err)
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "msg", de.Message)
	assert.Len(t, reported, 1)
	assert.Equal(t, []string{"msg"}, before.messages)
	assert.Equal(t, []string{"msg"}, after.messages)
}

func TestSet_FailureWithoutHandlerIsLogged(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	var s Set
	after := &recorder{}
	s.Add(panicker{})
	s.Add(after)

	require.Error(t, s.Broadcast("msg"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "observer delivery failed", entry.Message)
	var de *DeliveryError
	require.True(t, errors.As(entry.Data[logrus.ErrorKey].(error), &de))
	assert.Equal(t, []string{"msg"}, after.messages)
}

func TestSet_ObserverMayMutateSetDuringBroadcast(t *testing.T) {
	var s Set
	late := &recorder{}
	s.Add(ObserverFunc(func(string) { s.Add(late) }))

	require.NoError(t, s.Broadcast("first"))
	assert.Empty(t, late.messages, "observer added mid-broadcast waits for the next message")

	require.NoError(t, s.Broadcast("second"))
	assert.Equal(t, []string{"second"}, late.messages)
}

func TestSet_ConcurrentAddAndBroadcast(t *testing.T) {
	var s Set
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Add(&recorder{})
		}()
		go func() {
			defer wg.Done()
			_ = s.Broadcast("tick")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}
