package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	bus := New()
	a, unsubA := bus.Subscribe(4)
	b, unsubB := bus.Subscribe(4)
	defer unsubA()
	defer unsubB()

	bus.Publish(Event{Type: SessionOpened, Data: SessionData{ID: 1}})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, SessionOpened, e.Type)
			assert.False(t, e.Time.IsZero())
			assert.Equal(t, int64(1), e.Data.(SessionData).ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Publish(Event{Type: PhotoDetected})
	bus.Publish(Event{Type: PhotoAccepted})
	require.Len(t, ch, 1)
	assert.Equal(t, PhotoDetected, (<-ch).Type)
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(1)
	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	bus.Publish(Event{Type: PhotoRejected})
}

func TestPublisherNil(t *testing.T) {
	bus := Publisher(nil)
	bus.Publish(Event{Type: PhotoDetected})
	ch, unsub := bus.Subscribe(1)
	defer unsub()
	_, ok := <-ch
	assert.False(t, ok)
}
