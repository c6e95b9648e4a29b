package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrokerOrderedDelivery(t *testing.T) {
	b := NewBroker(nil)

	var got []string
	b.Subscribe(func(ev Event) { got = append(got, ev.Name) })

	b.Emit("first", nil)
	b.Emit("second", nil)
	b.Emit("third", nil)

	require.Equal(t, []string{"first", "second", "third"}, got)
}

func TestBrokerAllSubscribersSeeSameSequence(t *testing.T) {
	b := NewBroker(nil)

	var one, two []string
	b.Subscribe(func(ev Event) { one = append(one, ev.Name) })
	b.Subscribe(func(ev Event) { two = append(two, ev.Name) })

	for _, name := range []string{"a", "b", "c", "d"} {
		b.Emit(name, nil)
	}

	require.Equal(t, one, two)
	require.Len(t, one, 4)
}

func TestBrokerPanickingSubscriberIsolated(t *testing.T) {
	b := NewBroker(nil)

	var survived []string
	b.Subscribe(func(ev Event) { panic("subscriber bug") })
	b.Subscribe(func(ev Event) { survived = append(survived, ev.Name) })

	b.Emit("x", nil)
	b.Emit("y", nil)

	require.Equal(t, []string{"x", "y"}, survived)
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker(nil)

	var got []string
	unsub := b.Subscribe(func(ev Event) { got = append(got, ev.Name) })

	b.Emit("before", nil)
	unsub()
	b.Emit("after", nil)

	require.Equal(t, []string{"before"}, got)
}

func TestBrokerChannel(t *testing.T) {
	b := NewBroker(nil)

	ch, cancel := b.Channel()
	b.Emit("one", map[string]string{"k": "v"})
	b.Emit("two", nil)
	cancel()

	var names []string
	for ev := range ch {
		names = append(names, ev.Name)
	}
	require.Equal(t, []string{"one", "two"}, names)
}

func TestBrokerChannelDropsConfinedToStalledConsumer(t *testing.T) {
	b := NewBroker(nil)

	var direct []string
	b.Subscribe(func(ev Event) { direct = append(direct, ev.Name) })

	// Nobody reads the channel, so it overflows past its buffer.
	ch, cancel := b.Channel()
	total := channelBuffer + 10
	for i := 0; i < total; i++ {
		b.Emit("tick", i)
	}

	// The direct subscriber still saw everything, in order.
	require.Len(t, direct, total)

	cancel()
	var relayed int
	for range ch {
		relayed++
	}
	require.Equal(t, channelBuffer, relayed)
}

func TestBrokerEventPayloadPassedThrough(t *testing.T) {
	b := NewBroker(nil)

	var payload any
	b.Subscribe(func(ev Event) { payload = ev.Payload })

	b.Emit("e", 42)
	require.Equal(t, 42, payload)
}
