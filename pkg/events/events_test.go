package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()

	select {
	case e := <-sub.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus_PublishStampsSessionAndTime(t *testing.T) {
	bus := NewBus("s1")
	sub := bus.Subscribe(4)
	defer bus.Unsubscribe(sub)

	Emit(bus, KindSpeakerSelected, "chat_manager", SpeakerData{Speaker: "Coder", Round: 1})

	got := receive(t, sub)
	assert.Equal(t, KindSpeakerSelected, got.Kind)
	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, "chat_manager", got.Agent)
	assert.False(t, got.Time.IsZero())

	data, ok := got.Data.(SpeakerData)
	require.True(t, ok)
	assert.Equal(t, "Coder", data.Speaker)
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus("")
	a := bus.Subscribe(1)
	b := bus.Subscribe(1)

	bus.Publish(Event{Kind: KindMessage})

	assert.Equal(t, KindMessage, receive(t, a).Kind)
	assert.Equal(t, KindMessage, receive(t, b).Kind)
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus("")
	sub := bus.Subscribe(1)
	defer bus.Unsubscribe(sub)

	bus.Publish(Event{Kind: KindMessage})
	bus.Publish(Event{Kind: KindChatEnd})

	assert.Equal(t, KindMessage, receive(t, sub).Kind)
	assert.Equal(t, uint64(1), bus.Dropped())

	select {
	case <-sub.C:
		t.Fatal("expected the second event to be dropped")
	default:
	}
}

func TestBus_UnsubscribeClosesOnce(t *testing.T) {
	bus := NewBus("")
	sub := bus.Subscribe(1)

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestBus_CloseEndsAllSubscriptions(t *testing.T) {
	bus := NewBus("")
	subs := []*Subscription{bus.Subscribe(1), bus.Subscribe(1)}
	assert.Equal(t, 2, bus.Subscribers())

	bus.Close()
	assert.Zero(t, bus.Subscribers())
	bus.Publish(Event{Kind: KindMessage})

	for _, s := range subs {
		_, ok := <-s.C
		assert.False(t, ok)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus("")
	sub := bus.Subscribe(100)
	defer bus.Unsubscribe(sub)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				bus.Publish(Event{Kind: KindMessage})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, sub.C, 100)
}

func TestEmit_NilPublisher(t *testing.T) {
	assert.NotPanics(t, func() { Emit(nil, KindError, "x", nil) })
	assert.NotPanics(t, func() { Emit(Nop{}, KindError, "x", nil) })
}
