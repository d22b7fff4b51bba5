package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()

	var got []LoginEventType
	require.NoError(t, bus.Subscribe(func(e LoginEvent) {
		got = append(got, e.Type)
	}))

	bus.Publish(LoginEvent{Type: EventTypeEnqueue, SessionID: "tab-1", At: time.Now()})
	bus.Publish(LoginEvent{Type: EventTypeDispatchBegin, SessionID: "tab-1", At: time.Now()})
	bus.Publish(LoginEvent{Type: EventTypeDispatchEnd, SessionID: "tab-1", At: time.Now()})

	assert.Equal(t, []LoginEventType{
		EventTypeEnqueue,
		EventTypeDispatchBegin,
		EventTypeDispatchEnd,
	}, got)
}

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus()

	first, second := 0, 0
	require.NoError(t, bus.Subscribe(func(LoginEvent) { first++ }))
	require.NoError(t, bus.Subscribe(func(LoginEvent) { second++ }))

	bus.Publish(LoginEvent{Type: EventTypeFormFound, SessionID: "tab-1"})
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	handler := func(LoginEvent) { count++ }
	require.NoError(t, bus.Subscribe(handler))

	bus.Publish(LoginEvent{Type: EventTypeGaveUp, SessionID: "tab-1"})
	require.NoError(t, bus.Unsubscribe(handler))
	bus.Publish(LoginEvent{Type: EventTypeGaveUp, SessionID: "tab-1"})

	assert.Equal(t, 1, count)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	bus.Publish(LoginEvent{Type: EventTypeSessionRemoved, SessionID: "tab-1"})
}

func TestBusCarriesEventFields(t *testing.T) {
	bus := NewBus()

	var got LoginEvent
	require.NoError(t, bus.Subscribe(func(e LoginEvent) { got = e }))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(LoginEvent{
		Type:      EventTypeFormFilled,
		SessionID: "tab-7",
		TenantKey: "auth.omnivendor.example",
		At:        at,
		Detail:    "main",
	})

	assert.Equal(t, EventTypeFormFilled, got.Type)
	assert.Equal(t, "tab-7", got.SessionID)
	assert.Equal(t, "auth.omnivendor.example", got.TenantKey)
	assert.Equal(t, at, got.At)
	assert.Equal(t, "main", got.Detail)
}
